package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

// MockDataAPI simulates the Polymarket Data API activity feed.
type MockDataAPI struct {
	*httptest.Server
	mu      sync.RWMutex
	records []*types.ActivityRecord
}

// NewMockDataAPI creates a mock data API server.
func NewMockDataAPI() *MockDataAPI {
	mock := &MockDataAPI{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activity" {
			http.NotFound(w, r)
			return
		}

		wallet := strings.ToLower(r.URL.Query().Get("user"))

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		out := make([]*types.ActivityRecord, 0)
		for _, rec := range mock.records {
			if wallet == "" || strings.ToLower(rec.ProxyWallet) == wallet {
				out = append(out, rec)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// AddActivity appends records to the feed.
func (m *MockDataAPI) AddActivity(records ...*types.ActivityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

// MockGammaAPI simulates the Polymarket Gamma API markets endpoint,
// including the condition_ids and clob_token_ids filters.
type MockGammaAPI struct {
	*httptest.Server
	mu      sync.RWMutex
	markets []*types.GammaMarket
}

// NewMockGammaAPI creates a mock gamma API server.
func NewMockGammaAPI(markets ...*types.GammaMarket) *MockGammaAPI {
	mock := &MockGammaAPI{markets: markets}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		conditionIDs := q["condition_ids"]
		tokenID := q.Get("clob_token_ids")

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		out := make([]*types.GammaMarket, 0)
		for _, m := range mock.markets {
			switch {
			case tokenID != "":
				for _, id := range m.TokenIDs() {
					if id == tokenID {
						out = append(out, m)
						break
					}
				}
			case len(conditionIDs) > 0:
				for _, id := range conditionIDs {
					if m.ConditionID == id {
						out = append(out, m)
						break
					}
				}
			default:
				out = append(out, m)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetMarkets replaces the market set.
func (m *MockGammaAPI) SetMarkets(markets ...*types.GammaMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// SubmittedOrder is one order body captured by the mock CLOB.
type SubmittedOrder struct {
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
	Order     json.RawMessage `json:"order"`
}

// MockClobAPI simulates the CLOB endpoints the order client touches:
// order submission, price quotes, market token lookup and balances.
type MockClobAPI struct {
	*httptest.Server
	mu sync.RWMutex

	Orders     []SubmittedOrder
	Prices     map[string]string // token id -> BUY-side quote
	Markets    map[string]*types.ClobMarket
	Collateral string // raw 1e6 units returned by /balance-allowance
	RejectWith string // non-empty: every order errors with this message
}

// NewMockClobAPI creates a mock CLOB server.
func NewMockClobAPI() *MockClobAPI {
	mock := &MockClobAPI{
		Prices:     make(map[string]string),
		Markets:    make(map[string]*types.ClobMarket),
		Collateral: "10000000",
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/order":
			var order SubmittedOrder
			if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			mock.mu.Lock()
			mock.Orders = append(mock.Orders, order)
			reject := mock.RejectWith
			n := len(mock.Orders)
			mock.mu.Unlock()

			if reject != "" {
				json.NewEncoder(w).Encode(map[string]string{"error": reject})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"orderID": "mock-order-" + string(rune('0'+n%10)),
				"status":  "matched",
			})

		case r.Method == http.MethodGet && r.URL.Path == "/price":
			mock.mu.RLock()
			price, ok := mock.Prices[r.URL.Query().Get("token_id")]
			mock.mu.RUnlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"price": price})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/markets/"):
			conditionID := strings.TrimPrefix(r.URL.Path, "/markets/")
			mock.mu.RLock()
			market, ok := mock.Markets[conditionID]
			mock.mu.RUnlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(market)

		case r.Method == http.MethodGet && r.URL.Path == "/balance-allowance":
			mock.mu.RLock()
			balance := mock.Collateral
			mock.mu.RUnlock()
			json.NewEncoder(w).Encode(map[string]string{"balance": balance})

		default:
			http.NotFound(w, r)
		}
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// OrderCount returns how many orders were submitted.
func (m *MockClobAPI) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Orders)
}
