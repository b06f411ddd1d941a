package markets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	condBTC = "0xbtccond"
	condETH = "0xethcond"
)

func gammaRow(conditionID string, closed bool, prices string) string {
	return fmt.Sprintf(`{
		"id": "1",
		"conditionId": %q,
		"question": "Will it go up?",
		"slug": "will-it-go-up",
		"closed": %t,
		"active": true,
		"outcomes": "[\"Up\", \"Down\"]",
		"outcomePrices": %q,
		"clobTokenIds": "[\"111\", \"222\"]"
	}`, conditionID, closed, prices)
}

func newGammaServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{BaseURL: srv.URL, Logger: zap.NewNop()})
}

func TestMarketByCondition(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, condBTC, r.URL.Query().Get("condition_ids"))
		fmt.Fprintf(w, "[%s]", gammaRow(condBTC, false, `["0.53", "0.47"]`))
	})

	m, err := client.MarketByCondition(context.Background(), condBTC)
	require.NoError(t, err)

	assert.Equal(t, condBTC, m.ConditionID)
	assert.Equal(t, []string{"Up", "Down"}, m.OutcomeLabels())
	assert.Equal(t, []float64{0.53, 0.47}, m.OutcomePriceList())
	assert.Equal(t, -1, m.WinnerIndex())
}

func TestMarketByCondition_NotFound(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})

	_, err := client.MarketByCondition(context.Background(), condBTC)
	assert.Error(t, err)
}

func TestMarketsByConditions_Batch(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["condition_ids"]
		assert.ElementsMatch(t, []string{condBTC, condETH}, ids)
		fmt.Fprintf(w, "[%s,%s]",
			gammaRow(condBTC, true, `["1", "0"]`),
			gammaRow(condETH, false, `["0.40", "0.60"]`))
	})

	markets, err := client.MarketsByConditions(context.Background(), []string{condBTC, condETH})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, 0, markets[condBTC].WinnerIndex())
	assert.True(t, markets[condBTC].Closed)
	assert.Equal(t, -1, markets[condETH].WinnerIndex())
}

func TestMarketsByConditions_EmptyInput(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused.invalid"})

	markets, err := client.MarketsByConditions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestRefByToken(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "222", r.URL.Query().Get("clob_token_ids"))
		fmt.Fprintf(w, "[%s]", gammaRow(condBTC, false, `["0.53", "0.47"]`))
	})

	ref, market, err := client.RefByToken(context.Background(), "222")
	require.NoError(t, err)

	assert.Equal(t, &types.MarketRef{ConditionID: condBTC, OutcomeIndex: 1}, ref)
	assert.Equal(t, condBTC, market.ConditionID)
}

func TestRefByToken_Unknown(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})

	_, _, err := client.RefByToken(context.Background(), "999")
	assert.Error(t, err)
}

func TestFetch_ServerError(t *testing.T) {
	client := newGammaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.MarketByCondition(context.Background(), condBTC)
	assert.Error(t, err)
}
