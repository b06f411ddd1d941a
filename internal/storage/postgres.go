package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		donor_wallet TEXT NOT NULL DEFAULT '',
		asset TEXT NOT NULL DEFAULT '',
		asset_logo TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '',
		side TEXT NOT NULL DEFAULT '',
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price DOUBLE PRECISION,
		position_size DOUBLE PRECISION NOT NULL,
		pnl DOUBLE PRECISION,
		pnl_percent DOUBLE PRECISION,
		status TEXT NOT NULL,
		question TEXT NOT NULL DEFAULT '',
		market_url TEXT NOT NULL DEFAULT '',
		condition_id TEXT NOT NULL DEFAULT '',
		outcome_index INTEGER NOT NULL DEFAULT 0,
		market_end_at TIMESTAMPTZ,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_open_market
		ON trades (condition_id, outcome_index) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS agent_stats (
		agent_id TEXT PRIMARY KEY,
		balance DOUBLE PRECISION NOT NULL,
		starting_balance DOUBLE PRECISION NOT NULL,
		total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_trades INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS equity_snapshots (
		id BIGSERIAL PRIMARY KEY,
		agent_id TEXT NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

// NewPostgresStorage creates a new PostgreSQL storage and ensures the schema.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range schema {
		_, err = db.Exec(stmt)
		if err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// InsertTrade appends a new open trade row.
func (p *PostgresStorage) InsertTrade(ctx context.Context, trade *types.Trade) error {
	query := `
		INSERT INTO trades (
			id, agent_id, donor_wallet, asset, asset_logo, direction, side,
			entry_price, position_size, status, question, market_url,
			condition_id, outcome_index, market_end_at, opened_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		trade.ID,
		trade.AgentID,
		trade.DonorWallet,
		trade.Asset,
		trade.AssetLogo,
		trade.Direction,
		trade.Side,
		trade.EntryPrice,
		trade.PositionSize,
		trade.Status,
		trade.Question,
		trade.MarketURL,
		trade.ConditionID,
		trade.OutcomeIndex,
		trade.MarketEndAt,
		trade.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	p.logger.Debug("trade-inserted",
		zap.String("trade-id", trade.ID),
		zap.String("agent-id", trade.AgentID))

	return nil
}

// CloseTrade marks a trade closed with its settlement figures.
func (p *PostgresStorage) CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl, pnlPercent float64, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET exit_price = $2, pnl = $3, pnl_percent = $4, closed_at = $5, status = 'closed'
		WHERE id = $1 AND status = 'open'
	`

	res, err := p.db.ExecContext(ctx, query, tradeID, exitPrice, pnl, pnlPercent, closedAt)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("close trade %s: not open", tradeID)
	}

	return nil
}

// ApplyRealExecution corrects entry price/size and adjusts the agent
// balance by the notional delta in one transaction.
func (p *PostgresStorage) ApplyRealExecution(ctx context.Context, tradeID string, realPrice, realSize float64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var agentID string
	var oldSize float64
	err = tx.QueryRowContext(ctx,
		`SELECT agent_id, position_size FROM trades WHERE id = $1 AND status = 'open'`,
		tradeID,
	).Scan(&agentID, &oldSize)
	if err != nil {
		return fmt.Errorf("load trade: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE trades SET entry_price = $2, position_size = $3 WHERE id = $1`,
		tradeID, realPrice, realSize,
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE agent_stats SET balance = balance - $2 WHERE agent_id = $1`,
		agentID, realSize-oldSize,
	)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Debug("trade-reconciled",
		zap.String("trade-id", tradeID),
		zap.Float64("real-price", realPrice),
		zap.Float64("real-size", realSize),
		zap.Float64("size-delta", realSize-oldSize))

	return nil
}

// HasSeenTrade reports whether the trade identity already exists.
func (p *PostgresStorage) HasSeenTrade(ctx context.Context, tradeID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trades WHERE id = $1)`, tradeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trade: %w", err)
	}
	return exists, nil
}

const tradeColumns = `
	id, agent_id, donor_wallet, asset, asset_logo, direction, side,
	entry_price, exit_price, position_size, pnl, pnl_percent, status,
	question, market_url, condition_id, outcome_index, market_end_at,
	opened_at, closed_at
`

func scanTrades(rows *sql.Rows) ([]*types.Trade, error) {
	var trades []*types.Trade

	for rows.Next() {
		var t types.Trade
		var exitPrice, pnl, pnlPercent sql.NullFloat64
		var marketEndAt, closedAt sql.NullTime

		err := rows.Scan(
			&t.ID, &t.AgentID, &t.DonorWallet, &t.Asset, &t.AssetLogo,
			&t.Direction, &t.Side, &t.EntryPrice, &exitPrice, &t.PositionSize,
			&pnl, &pnlPercent, &t.Status, &t.Question, &t.MarketURL,
			&t.ConditionID, &t.OutcomeIndex, &marketEndAt, &t.OpenedAt, &closedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		if exitPrice.Valid {
			t.ExitPrice = &exitPrice.Float64
		}
		if pnl.Valid {
			t.PnL = &pnl.Float64
		}
		if pnlPercent.Valid {
			t.PnLPercent = &pnlPercent.Float64
		}
		if marketEndAt.Valid {
			t.MarketEndAt = marketEndAt.Time
		}
		if closedAt.Valid {
			t.ClosedAt = &closedAt.Time
		}

		trades = append(trades, &t)
	}

	return trades, rows.Err()
}

// GetOpenTradesByMarket returns open trades for one (market, outcome) slot.
func (p *PostgresStorage) GetOpenTradesByMarket(ctx context.Context, conditionID string, outcomeIndex int) ([]*types.Trade, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE status = 'open' AND condition_id = $1 AND outcome_index = $2`,
		conditionID, outcomeIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetOpenTrades returns all open trades.
func (p *PostgresStorage) GetOpenTrades(ctx context.Context) ([]*types.Trade, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' ORDER BY opened_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetAgentBalance returns the agent's current virtual balance.
func (p *PostgresStorage) GetAgentBalance(ctx context.Context, agentID string) (float64, error) {
	var balance float64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM agent_stats WHERE agent_id = $1`, agentID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// DeductBalance debits the agent's virtual balance at trade open.
func (p *PostgresStorage) DeductBalance(ctx context.Context, agentID string, amount float64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE agent_stats SET balance = balance - $2 WHERE agent_id = $1`,
		agentID, amount,
	)
	if err != nil {
		return fmt.Errorf("deduct balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("deduct balance: unknown agent %s", agentID)
	}

	return nil
}

// SettleClose credits positionSize+pnl back to the agent and updates counters.
func (p *PostgresStorage) SettleClose(ctx context.Context, agentID string, positionSize, pnl float64) error {
	win := 0
	loss := 0
	if pnl > 0 {
		win = 1
	} else {
		loss = 1
	}

	_, err := p.db.ExecContext(ctx, `
		UPDATE agent_stats SET
			balance = balance + $2,
			total_pnl = total_pnl + $3,
			total_trades = total_trades + 1,
			wins = wins + $4,
			losses = losses + $5
		WHERE agent_id = $1
	`, agentID, positionSize+pnl, pnl, win, loss)
	if err != nil {
		return fmt.Errorf("settle close: %w", err)
	}

	return nil
}

// RecordEquity appends an immutable balance snapshot.
func (p *PostgresStorage) RecordEquity(ctx context.Context, agentID string, balance float64, ts time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO equity_snapshots (agent_id, balance, recorded_at) VALUES ($1, $2, $3)`,
		agentID, balance, ts,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

// GetAgentStats returns per-agent rows with win rate and ROI derived.
func (p *PostgresStorage) GetAgentStats(ctx context.Context) ([]*types.AgentStats, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT agent_id, balance, starting_balance, total_pnl, total_trades, wins, losses
		FROM agent_stats ORDER BY balance DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []*types.AgentStats
	for rows.Next() {
		var s types.AgentStats
		err = rows.Scan(&s.AgentID, &s.Balance, &s.StartingBalance,
			&s.TotalPnL, &s.TotalTrades, &s.Wins, &s.Losses)
		if err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		if s.TotalTrades > 0 {
			s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
		}
		if s.StartingBalance > 0 {
			s.TotalROI = s.TotalPnL / s.StartingBalance * 100
		}

		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// SeedAgents creates stats rows for agents that do not exist yet.
func (p *PostgresStorage) SeedAgents(ctx context.Context, agentIDs []string, startingBalance float64) error {
	for _, agentID := range agentIDs {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO agent_stats (agent_id, balance, starting_balance)
			VALUES ($1, $2, $2)
			ON CONFLICT (agent_id) DO NOTHING
		`, agentID, startingBalance)
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", agentID, err)
		}
	}
	return nil
}

// Reset wipes trades and equity history and reseeds every known agent.
func (p *PostgresStorage) Reset(ctx context.Context, startingBalance float64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM trades`)
	if err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM equity_snapshots`)
	if err != nil {
		return fmt.Errorf("clear equity: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE agent_stats SET
			balance = $1, starting_balance = $1, total_pnl = 0,
			total_trades = 0, wins = 0, losses = 0
	`, startingBalance)
	if err != nil {
		return fmt.Errorf("reseed stats: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Info("ledger-reset", zap.Float64("starting-balance", startingBalance))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
