package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-core/internal/infrastructure"
	"trading-core/internal/model"
)

// TradeStore is the persistence surface the trade machine needs.
type TradeStore interface {
	InsertTrade(ctx context.Context, t model.Trade) error
	SettleTrade(ctx context.Context, id string, outcome model.TradeStatus, profit decimal.Decimal) (bool, error)
}

// Trades opens positions from executed signals and settles them once.
type Trades struct {
	store  TradeStore
	logger *zap.Logger
}

func NewTrades(store TradeStore, logger *zap.Logger) *Trades {
	return &Trades{store: store, logger: logger}
}

// Open records a broker-confirmed trade in the open state. Amount and
// timeframe are fixed here from the signal and never change.
func (t *Trades) Open(ctx context.Context, userID int64, brokerRef string, sig model.Signal) (model.Trade, error) {
	trade := model.Trade{
		ID:               uuid.NewString(),
		UserID:           userID,
		TradeID:          brokerRef,
		Asset:            sig.Asset,
		Direction:        sig.Direction,
		Status:           model.TradeOpen,
		Amount:           sig.Amount,
		TimeframeSeconds: sig.TimeframeSeconds,
		CreatedAt:        time.Now().UTC(),
	}

	if err := t.store.InsertTrade(ctx, trade); err != nil {
		return model.Trade{}, fmt.Errorf("opening trade for user %d: %w", userID, err)
	}

	infrastructure.TradesOpened.Inc()
	t.logger.Info("trade opened",
		zap.String("id", trade.ID),
		zap.String("broker_ref", brokerRef),
		zap.String("asset", sig.Asset),
		zap.String("direction", string(sig.Direction)))
	return trade, nil
}

// Settle applies the broker's outcome to an open trade. Returns whether
// this call performed the transition; false means another writer settled
// first, which is a benign no-op.
func (t *Trades) Settle(ctx context.Context, id string, outcome model.TradeStatus, profit decimal.Decimal) (bool, error) {
	if outcome != model.TradeWin && outcome != model.TradeLoss {
		return false, fmt.Errorf("lifecycle: %q is not a settlement outcome", outcome)
	}

	settled, err := t.store.SettleTrade(ctx, id, outcome, profit)
	if err != nil {
		return false, fmt.Errorf("settling trade %s: %w", id, err)
	}
	if !settled {
		t.logger.Info("trade already settled", zap.String("id", id))
		return false, nil
	}

	infrastructure.TradesSettled.WithLabelValues(string(outcome)).Inc()
	t.logger.Info("trade settled",
		zap.String("id", id),
		zap.String("outcome", string(outcome)),
		zap.String("profit", profit.String()))
	return true, nil
}
