package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trading-core/internal/model"
)

// memRequestStore applies the same conditional-transition contract the
// SQL store enforces: a request leaves pending exactly once.
type memRequestStore struct {
	mu       sync.Mutex
	requests map[int64]*model.SignalRequest
}

func newMemRequestStore(ids ...int64) *memRequestStore {
	s := &memRequestStore{requests: make(map[int64]*model.SignalRequest)}
	for _, id := range ids {
		s.requests[id] = &model.SignalRequest{
			ID:        id,
			UserID:    id * 100,
			Status:    model.RequestPending,
			CreatedAt: time.Now().UTC(),
		}
	}
	return s
}

func (s *memRequestStore) PendingRequests(_ context.Context, limit int) ([]model.SignalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SignalRequest
	for _, r := range s.requests {
		if r.Status == model.RequestPending && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memRequestStore) CompleteRequest(_ context.Context, id int64, status model.RequestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != model.RequestPending {
		return false, nil
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

// memTradeStore mirrors the conditional settlement semantics of the
// trades table.
type memTradeStore struct {
	mu     sync.Mutex
	trades map[string]*model.Trade
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{trades: make(map[string]*model.Trade)}
}

func (s *memTradeStore) InsertTrade(_ context.Context, t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := t
	s.trades[t.ID] = &copied
	return nil
}

func (s *memTradeStore) SettleTrade(_ context.Context, id string, outcome model.TradeStatus, profit decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.Status != model.TradeOpen {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = outcome
	t.ClosedAt = &now
	t.Profit = &profit
	return true, nil
}

func (s *memTradeStore) get(id string) model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trades[id]
}

func testSignal() model.Signal {
	return model.Signal{
		Asset:            "EURUSD",
		Direction:        model.DirectionCall,
		Amount:           decimal.NewFromInt(10),
		TimeframeSeconds: 60,
		Indicator:        "RSI",
		Value:            22.5,
	}
}

func TestRequests_TerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	store := newMemRequestStore(1)
	requests := NewRequests(store, zap.NewNop())

	require.NoError(t, requests.MarkExecuted(ctx, 1))
	assert.Equal(t, model.RequestExecuted, store.requests[1].Status)

	// a late failure report must not move the request out of executed
	require.NoError(t, requests.MarkFailed(ctx, 1))
	assert.Equal(t, model.RequestExecuted, store.requests[1].Status)

	// and the other way around never re-executes
	require.NoError(t, requests.MarkExecuted(ctx, 1))
	assert.Equal(t, model.RequestExecuted, store.requests[1].Status)
}

func TestRequests_PendingBatchHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := newMemRequestStore(1, 2, 3, 4, 5, 6, 7)
	requests := NewRequests(store, zap.NewNop())

	pending, err := requests.Pending(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, pending, 5)
}

func TestTrades_OpenStartsOpenWithNoSettlementFields(t *testing.T) {
	ctx := context.Background()
	store := newMemTradeStore()
	trades := NewTrades(store, zap.NewNop())

	trade, err := trades.Open(ctx, 42, "PO-777", testSignal())
	require.NoError(t, err)

	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, int64(42), trade.UserID)
	assert.Equal(t, "PO-777", trade.TradeID)
	assert.Equal(t, model.TradeOpen, trade.Status)
	assert.Nil(t, trade.ClosedAt)
	assert.Nil(t, trade.Profit)

	stored := store.get(trade.ID)
	assert.Equal(t, model.TradeOpen, stored.Status)
	assert.Nil(t, stored.ClosedAt)
	assert.Nil(t, stored.Profit)
}

func TestTrades_SettleOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemTradeStore()
	trades := NewTrades(store, zap.NewNop())

	trade, err := trades.Open(ctx, 42, "PO-1", testSignal())
	require.NoError(t, err)

	settled, err := trades.Settle(ctx, trade.ID, model.TradeWin, decimal.NewFromFloat(8.2))
	require.NoError(t, err)
	assert.True(t, settled)

	stored := store.get(trade.ID)
	assert.Equal(t, model.TradeWin, stored.Status)
	require.NotNil(t, stored.ClosedAt)
	require.NotNil(t, stored.Profit)
	assert.True(t, stored.Profit.Equal(decimal.NewFromFloat(8.2)))

	// second settlement is a no-op, the first outcome stands
	settled, err = trades.Settle(ctx, trade.ID, model.TradeLoss, decimal.NewFromInt(-10))
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Equal(t, model.TradeWin, store.get(trade.ID).Status)
}

func TestTrades_SettleRejectsNonTerminalOutcome(t *testing.T) {
	ctx := context.Background()
	trades := NewTrades(newMemTradeStore(), zap.NewNop())

	_, err := trades.Settle(ctx, "whatever", model.TradeOpen, decimal.Zero)
	assert.Error(t, err)
}

func TestTrades_ConcurrentSettlementHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newMemTradeStore()
	trades := NewTrades(store, zap.NewNop())

	trade, err := trades.Open(ctx, 42, "PO-9", testSignal())
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		outcome := model.TradeWin
		if i%2 == 1 {
			outcome = model.TradeLoss
		}
		wg.Add(1)
		go func(outcome model.TradeStatus) {
			defer wg.Done()
			settled, err := trades.Settle(ctx, trade.ID, outcome, decimal.NewFromInt(1))
			assert.NoError(t, err)
			wins <- settled
		}(outcome)
	}
	wg.Wait()
	close(wins)

	winners := 0
	for settled := range wins {
		if settled {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	stored := store.get(trade.ID)
	assert.NotEqual(t, model.TradeOpen, stored.Status)
	assert.NotNil(t, stored.ClosedAt)
	assert.NotNil(t, stored.Profit)
}
