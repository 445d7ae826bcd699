// Package storage persists the core's rows: the active strategy (read
// only), signal requests, trades and aggregated stats. All lifecycle
// writes are conditional updates; the database is the serialization
// point when several pipeline instances share a store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-core/internal/model"
)

// ErrNoActiveStrategy is returned when no strategy_settings row has
// is_active set. The cycle treats it as fatal for the cycle, not the
// process.
var ErrNoActiveStrategy = errors.New("storage: no active strategy")

// PgxPool is the subset of pgxpool.Pool the store needs. Tests supply
// stubs; production passes *pgxpool.Pool.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Store struct {
	pool   PgxPool
	logger *zap.Logger
}

func NewStore(pool PgxPool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// ActiveStrategy reads the single active strategy row. The admin
// collaborator guarantees at most one; newest updated_at wins if that
// invariant is ever violated upstream.
func (s *Store) ActiveStrategy(ctx context.Context) (model.StrategyConfig, error) {
	var cfg model.StrategyConfig
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_active, assets_to_monitor, allow_trading,
		       default_amount, default_timeframe, rsi_period, rsi_oversold,
		       rsi_overbought, trend_strength_min, trend_deadband_percent, updated_at
		FROM strategy_settings
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`).Scan(
		&cfg.ID, &cfg.Name, &cfg.IsActive, &cfg.AssetsToMonitor, &cfg.AllowTrading,
		&cfg.DefaultAmount, &cfg.DefaultTimeframeSeconds, &cfg.RSIPeriod, &cfg.RSIOversold,
		&cfg.RSIOverbought, &cfg.TrendStrengthMin, &cfg.TrendDeadbandPercent, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StrategyConfig{}, ErrNoActiveStrategy
	}
	if err != nil {
		return model.StrategyConfig{}, fmt.Errorf("querying active strategy: %w", err)
	}
	return cfg, nil
}

// PendingRequests returns up to limit pending signal requests, oldest
// first.
func (s *Store) PendingRequests(ctx context.Context, limit int) ([]model.SignalRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, status, created_at, updated_at
		FROM signal_requests
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, model.RequestPending, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending requests: %w", err)
	}
	defer rows.Close()

	var requests []model.SignalRequest
	for rows.Next() {
		var r model.SignalRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning signal request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// CompleteRequest moves a pending request to a terminal status. Returns
// false when the request had already left pending; that is a benign
// no-op, another writer advanced it first.
func (s *Store) CompleteRequest(ctx context.Context, id int64, status model.RequestStatus) (bool, error) {
	if status != model.RequestExecuted && status != model.RequestFailed {
		return false, fmt.Errorf("storage: %q is not a terminal request status", status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE signal_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, status, model.RequestPending)
	if err != nil {
		return false, fmt.Errorf("updating request %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertTrade records a freshly opened trade.
func (s *Store) InsertTrade(ctx context.Context, t model.Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (id, user_id, trade_id, asset, direction, status,
		                    amount, timeframe, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		t.ID, t.UserID, t.TradeID, t.Asset, t.Direction, t.Status,
		t.Amount, t.TimeframeSeconds, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting trade %s: %w", t.ID, err)
	}
	return nil
}

// SettleTrade closes an open trade with its outcome and profit. Returns
// false when the trade was already settled by another writer.
func (s *Store) SettleTrade(ctx context.Context, id string, outcome model.TradeStatus, profit decimal.Decimal) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trades
		SET status = $2, profit = $3, closed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, outcome, profit, model.TradeOpen)
	if err != nil {
		return false, fmt.Errorf("settling trade %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// TradesByUser lists a user's trades, newest first.
func (s *Store) TradesByUser(ctx context.Context, userID int64, limit int) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, trade_id, asset, direction, status, amount,
		       timeframe, created_at, closed_at, profit
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trades for user %d: %w", userID, err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.TradeID, &t.Asset, &t.Direction,
			&t.Status, &t.Amount, &t.TimeframeSeconds, &t.CreatedAt, &t.ClosedAt, &t.Profit); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertAggregatedStat appends one summary row. The table carries a
// uniqueness constraint on (asset, period, timestamp); a duplicate write
// is swallowed by ON CONFLICT and reported as false, not an error.
func (s *Store) InsertAggregatedStat(ctx context.Context, stat model.AggregatedStat) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO aggregated_stats (asset, period, timestamp, data_points,
		       price_open, price_close, price_high, price_low, price_mean,
		       volume_total, volume_mean, volatility, trend_direction,
		       trend_strength, price_change_percent, market_sentiment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (asset, period, timestamp) DO NOTHING`,
		stat.Asset, stat.Period, stat.Timestamp, stat.DataPoints,
		stat.PriceOpen, stat.PriceClose, stat.PriceHigh, stat.PriceLow, stat.PriceMean,
		stat.VolumeTotal, stat.VolumeMean, stat.Volatility, stat.TrendDirection,
		stat.TrendStrength, stat.PriceChangePercent, stat.MarketSentiment)
	if err != nil {
		return false, fmt.Errorf("inserting aggregated stat for %s: %w", stat.Asset, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecentStats lists summary rows for one asset and period, newest first.
func (s *Store) RecentStats(ctx context.Context, asset string, period model.Period, limit int) ([]model.AggregatedStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset, period, timestamp, data_points, price_open, price_close,
		       price_high, price_low, price_mean, volume_total, volume_mean,
		       volatility, trend_direction, trend_strength, price_change_percent,
		       market_sentiment
		FROM aggregated_stats
		WHERE asset = $1 AND period = $2
		ORDER BY timestamp DESC
		LIMIT $3`, asset, period, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stats for %s: %w", asset, err)
	}
	defer rows.Close()

	var stats []model.AggregatedStat
	for rows.Next() {
		var st model.AggregatedStat
		if err := rows.Scan(&st.Asset, &st.Period, &st.Timestamp, &st.DataPoints,
			&st.PriceOpen, &st.PriceClose, &st.PriceHigh, &st.PriceLow, &st.PriceMean,
			&st.VolumeTotal, &st.VolumeMean, &st.Volatility, &st.TrendDirection,
			&st.TrendStrength, &st.PriceChangePercent, &st.MarketSentiment); err != nil {
			return nil, fmt.Errorf("scanning aggregated stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
