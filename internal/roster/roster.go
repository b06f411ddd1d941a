package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// addressPattern matches a 20-byte hex address.
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Roster classifies observed wallets: donor wallets fan out to the agents
// copying them, self wallets map to the single agent that owns them.
// Reload replaces donor state atomically; consumers never see a
// partially updated view.
type Roster struct {
	mu sync.RWMutex

	donorAgents map[string][]string // donor wallet -> agent ids
	selfAgents  map[string]string   // agent's own wallet -> agent id

	logger *zap.Logger
}

// New builds a roster from static agent configuration. The self-wallet map
// is built once; donor wallets arrive via Reload.
func New(agents []types.AgentConfig, logger *zap.Logger) *Roster {
	selfAgents := make(map[string]string, len(agents))
	for _, a := range agents {
		w := strings.ToLower(a.Wallet)
		if !ValidAddress(w) {
			if a.Wallet != "" {
				logger.Warn("invalid-agent-wallet",
					zap.String("agent-id", a.ID),
					zap.String("wallet", a.Wallet))
			}
			continue
		}
		selfAgents[w] = a.ID
	}

	return &Roster{
		donorAgents: make(map[string][]string),
		selfAgents:  selfAgents,
		logger:      logger,
	}
}

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// Reload replaces the donor wallet state. Invalid addresses are excluded
// without failing the whole reload.
func (r *Roster) Reload(donors []types.DonorConfig) {
	donorAgents := make(map[string][]string)

	for _, d := range donors {
		for _, raw := range []string{d.ProxyWallet, d.OnchainWallet} {
			if raw == "" {
				continue
			}
			w := strings.ToLower(raw)
			if !ValidAddress(w) {
				r.logger.Warn("invalid-donor-wallet",
					zap.String("agent-id", d.AgentID),
					zap.String("wallet", raw))
				continue
			}
			if !contains(donorAgents[w], d.AgentID) {
				donorAgents[w] = append(donorAgents[w], d.AgentID)
			}
		}
	}

	r.mu.Lock()
	r.donorAgents = donorAgents
	r.mu.Unlock()

	r.logger.Info("roster-reloaded", zap.Int("donor-wallet-count", len(donorAgents)))
}

// AgentsForDonor returns the agent ids copying the given donor wallet.
func (r *Roster) AgentsForDonor(wallet string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := r.donorAgents[strings.ToLower(wallet)]
	if len(agents) == 0 {
		return nil
	}

	out := make([]string, len(agents))
	copy(out, agents)
	return out
}

// SelfAgent returns the agent owning the given wallet, if any.
func (r *Roster) SelfAgent(wallet string) (string, bool) {
	agentID, ok := r.selfAgents[strings.ToLower(wallet)]
	return agentID, ok
}

// IsDonor reports whether the wallet belongs to a tracked donor.
func (r *Roster) IsDonor(wallet string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.donorAgents[strings.ToLower(wallet)]
	return ok
}

// IsTracked reports whether the wallet is a donor or a self wallet.
func (r *Roster) IsTracked(wallet string) bool {
	w := strings.ToLower(wallet)

	if _, ok := r.selfAgents[w]; ok {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.donorAgents[w]
	return ok
}

// DonorWallets returns all donor wallet addresses, lowercase.
func (r *Roster) DonorWallets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallets := make([]string, 0, len(r.donorAgents))
	for w := range r.donorAgents {
		wallets = append(wallets, w)
	}
	return wallets
}

// SelfWallets returns all agent-owned wallet addresses, lowercase.
func (r *Roster) SelfWallets() []string {
	wallets := make([]string, 0, len(r.selfAgents))
	for w := range r.selfAgents {
		wallets = append(wallets, w)
	}
	return wallets
}

// AllWallets returns the union of donor and self wallets.
func (r *Roster) AllWallets() []string {
	wallets := r.DonorWallets()
	for _, w := range r.SelfWallets() {
		if !contains(wallets, w) {
			wallets = append(wallets, w)
		}
	}
	return wallets
}

// LoadDonorsFile reads and validates a donors JSON file.
func LoadDonorsFile(path string) ([]types.DonorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read donors file: %w", err)
	}

	var donors []types.DonorConfig
	err = json.Unmarshal(data, &donors)
	if err != nil {
		return nil, fmt.Errorf("parse donors file: %w", err)
	}

	for i, d := range donors {
		if d.AgentID == "" {
			return nil, fmt.Errorf("donors[%d]: agentId is required", i)
		}
		if d.ProxyWallet == "" && d.OnchainWallet == "" {
			return nil, fmt.Errorf("donors[%d] (%s): at least one wallet is required", i, d.AgentID)
		}
	}

	return donors, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
