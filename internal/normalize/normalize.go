// Package normalize converts raw venue activity records into canonical
// trade intents. Everything here is pure: same input, same output, no I/O.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

const (
	// DefaultMarketWindow is assumed when the slug carries no duration token.
	DefaultMarketWindow = 24 * time.Hour

	// UnknownAsset is the placeholder when no rule matches.
	UnknownAsset = "MKT"

	marketURLBase = "https://polymarket.com/event/"
)

// Intent builds the canonical TradeIntent for one activity record.
func Intent(a *types.ActivityRecord, source types.IntentSource) types.TradeIntent {
	observedAt := time.Unix(a.Timestamp, 0).UTC()
	outcome, direction := Side(a.Outcome, a.OutcomeIndex)

	return types.TradeIntent{
		Wallet:       strings.ToLower(a.ProxyWallet),
		Source:       source,
		Side:         strings.ToUpper(a.Side),
		Outcome:      outcome,
		Direction:    direction,
		Asset:        Asset(a),
		AssetLogo:    a.Icon,
		Price:        a.Price,
		ConditionID:  a.ConditionID,
		OutcomeIndex: a.OutcomeIndex,
		TokenID:      a.Asset,
		TxRef:        a.TxRef(),
		Title:        a.Title,
		MarketURL:    MarketURL(a),
		ObservedAt:   observedAt,
		MarketEndAt:  MarketEnd(a.Slug, observedAt),
	}
}

var (
	yesLabels = map[string]bool{"yes": true, "up": true, "above": true, "higher": true}
	noLabels  = map[string]bool{"no": true, "down": true, "below": true, "lower": true}
)

// Side maps an outcome label to the canonical (outcome, direction) pair.
// Unknown labels fall back to outcome-index parity: index 0 is YES.
func Side(label string, outcomeIndex int) (outcome, direction string) {
	switch l := strings.ToLower(strings.TrimSpace(label)); {
	case yesLabels[l]:
		return "YES", "UP"
	case noLabels[l]:
		return "NO", "DOWN"
	}

	if outcomeIndex == 0 {
		return "YES", "UP"
	}
	return "NO", "DOWN"
}

// knownAssets maps keywords found in slugs/titles to display tickers.
var knownAssets = []struct {
	keyword string
	ticker  string
}{
	{"bitcoin", "BTC"},
	{"btc", "BTC"},
	{"ethereum", "ETH"},
	{"eth", "ETH"},
	{"solana", "SOL"},
	{"sol", "SOL"},
	{"ripple", "XRP"},
	{"xrp", "XRP"},
	{"dogecoin", "DOGE"},
	{"doge", "DOGE"},
}

var (
	// The venue's CDN names most market icons "<TICKER>+fullsize.png".
	iconUpperPattern  = regexp.MustCompile(`([A-Z]{2,5})[+ ]`)
	iconTickerPattern = regexp.MustCompile(`(?i)/([a-z0-9]{2,6})[-_.](?:png|svg|jpg|jpeg|webp|icon)`)
	wordPattern       = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// assetRule extracts a display asset from one hint field; empty means no match.
type assetRule func(a *types.ActivityRecord) string

// assetRules are tried in order; first non-empty answer wins.
var assetRules = []assetRule{
	assetFromIcon,
	assetFromSlug,
	assetFromTitle,
	assetFromFirstWord,
}

// Asset derives a short display ticker for the traded market.
func Asset(a *types.ActivityRecord) string {
	for _, rule := range assetRules {
		if ticker := rule(a); ticker != "" {
			return ticker
		}
	}
	return UnknownAsset
}

// assetFromIcon pulls a ticker out of the icon URL. An uppercase run in
// the "<TICKER>+fullsize" form is trusted as-is; lowercase file names are
// only accepted when they name a known asset.
func assetFromIcon(a *types.ActivityRecord) string {
	icon := a.Icon
	if icon == "" {
		icon = a.Image
	}
	if icon == "" {
		return ""
	}

	if m := iconUpperPattern.FindStringSubmatch(icon); m != nil {
		return m[1]
	}

	m := iconTickerPattern.FindStringSubmatch(icon)
	if m == nil {
		return ""
	}

	candidate := strings.ToLower(m[1])
	for _, ka := range knownAssets {
		if candidate == ka.keyword || candidate == strings.ToLower(ka.ticker) {
			return ka.ticker
		}
	}
	return ""
}

func assetFromSlug(a *types.ActivityRecord) string {
	return matchKnownAsset(a.Slug)
}

func assetFromTitle(a *types.ActivityRecord) string {
	return matchKnownAsset(a.Title)
}

// matchKnownAsset scans for known asset keywords as whole words.
func matchKnownAsset(s string) string {
	if s == "" {
		return ""
	}

	for _, word := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		for _, ka := range knownAssets {
			if word == ka.keyword {
				return ka.ticker
			}
		}
	}
	return ""
}

// assetFromFirstWord falls back to the title's first word, sanitized and
// truncated to 4 alphanumerics.
func assetFromFirstWord(a *types.ActivityRecord) string {
	word := wordPattern.FindString(a.Title)
	if word == "" {
		return ""
	}

	if len(word) > 4 {
		word = word[:4]
	}
	return strings.ToUpper(word)
}

// durationPattern matches a duration token embedded in a market slug,
// e.g. "btc-up-15m-aug-28" or "eth_1h_window".
var durationPattern = regexp.MustCompile(`[_-](\d+)(m|h|d)(?:[_-]|$)`)

// MarketEnd estimates when the market settles from the slug's duration
// token, defaulting to 24 hours after the open.
func MarketEnd(slug string, openedAt time.Time) time.Time {
	m := durationPattern.FindStringSubmatch(strings.ToLower(slug))
	if m == nil {
		return openedAt.Add(DefaultMarketWindow)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return openedAt.Add(DefaultMarketWindow)
	}

	var unit time.Duration
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	return openedAt.Add(time.Duration(n) * unit)
}

// MarketURL derives the public market page URL from the event slug.
func MarketURL(a *types.ActivityRecord) string {
	slug := a.EventSlug
	if slug == "" {
		slug = a.Slug
	}
	if slug == "" {
		return ""
	}
	return marketURLBase + slug
}
