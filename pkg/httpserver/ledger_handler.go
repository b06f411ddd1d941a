package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LedgerHandler serves read-only ledger data for the dashboard.
type LedgerHandler struct {
	ledger LedgerReader
	logger *zap.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(ledger LedgerReader, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// AgentStatsRow is one leaderboard entry.
type AgentStatsRow struct {
	AgentID     string  `json:"agent_id"`
	Balance     float64 `json:"balance"`
	TotalPnL    float64 `json:"total_pnl"`
	TotalROI    float64 `json:"total_roi"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// OpenTradeRow is one open position entry.
type OpenTradeRow struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Asset        string    `json:"asset"`
	Direction    string    `json:"direction"`
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	PositionSize float64   `json:"position_size"`
	Question     string    `json:"question"`
	MarketURL    string    `json:"market_url"`
	OpenedAt     time.Time `json:"opened_at"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStats handles GET /api/stats requests.
func (h *LedgerHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.GetAgentStats(r.Context())
	if err != nil {
		h.logger.Error("stats-query-failed", zap.Error(err))
		h.writeError(w, "failed to load agent stats", http.StatusInternalServerError)
		return
	}

	rows := make([]AgentStatsRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, AgentStatsRow{
			AgentID:     s.AgentID,
			Balance:     s.Balance,
			TotalPnL:    s.TotalPnL,
			TotalROI:    s.TotalROI,
			WinRate:     s.WinRate,
			TotalTrades: s.TotalTrades,
			Wins:        s.Wins,
			Losses:      s.Losses,
		})
	}

	h.writeJSON(w, rows)
}

// HandleOpenTrades handles GET /api/trades?agent=<id> requests. Without the
// agent parameter all open trades are returned.
func (h *LedgerHandler) HandleOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.GetOpenTrades(r.Context())
	if err != nil {
		h.logger.Error("trades-query-failed", zap.Error(err))
		h.writeError(w, "failed to load open trades", http.StatusInternalServerError)
		return
	}

	agentFilter := r.URL.Query().Get("agent")

	rows := make([]OpenTradeRow, 0, len(trades))
	for _, t := range trades {
		if agentFilter != "" && t.AgentID != agentFilter {
			continue
		}
		rows = append(rows, OpenTradeRow{
			ID:           t.ID,
			AgentID:      t.AgentID,
			Asset:        t.Asset,
			Direction:    t.Direction,
			Side:         t.Side,
			EntryPrice:   t.EntryPrice,
			PositionSize: t.PositionSize,
			Question:     t.Question,
			MarketURL:    t.MarketURL,
			OpenedAt:     t.OpenedAt,
		})
	}

	h.writeJSON(w, rows)
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
