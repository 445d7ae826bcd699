package aggregator

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

type statKey struct {
	asset     string
	period    model.Period
	timestamp time.Time
}

// memStatStore enforces the (asset, period, window start) uniqueness the
// database key provides.
type memStatStore struct {
	mu    sync.Mutex
	cfg   model.StrategyConfig
	stats map[statKey]model.AggregatedStat
}

func newMemStatStore(cfg model.StrategyConfig) *memStatStore {
	return &memStatStore{cfg: cfg, stats: make(map[statKey]model.AggregatedStat)}
}

func (s *memStatStore) ActiveStrategy(context.Context) (model.StrategyConfig, error) {
	return s.cfg, nil
}

func (s *memStatStore) InsertAggregatedStat(_ context.Context, stat model.AggregatedStat) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := statKey{asset: stat.Asset, period: stat.Period, timestamp: stat.Timestamp}
	if _, exists := s.stats[key]; exists {
		return false, nil
	}
	s.stats[key] = stat
	return true, nil
}

func (s *memStatStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stats)
}

func (s *memStatStore) all() []model.AggregatedStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AggregatedStat, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	return out
}

type canned struct {
	series model.PriceSeries
}

func (c *canned) Fetch(context.Context, string) model.PriceSeries {
	return c.series
}

func risingSeries(end time.Time, n int) model.PriceSeries {
	series := make(model.PriceSeries, n)
	for i := 0; i < n; i++ {
		c := decimal.NewFromFloat(100 + float64(i))
		series[i] = model.Candle{
			Asset:  "EURUSD",
			Open:   c.Sub(decimal.NewFromInt(1)),
			High:   c.Add(decimal.NewFromInt(1)),
			Low:    c.Sub(decimal.NewFromInt(2)),
			Close:  c,
			Volume: decimal.NewFromInt(500),
			// most recent bar last, one per hour
			Timestamp: end.Add(-time.Duration(n-i) * time.Hour),
		}
	}
	return series
}

func testStrategy() model.StrategyConfig {
	return model.StrategyConfig{
		Name:                 "rsi-default",
		IsActive:             true,
		AssetsToMonitor:      []string{"EURUSD"},
		TrendStrengthMin:     50,
		TrendDeadbandPercent: 1,
	}
}

func TestRunOnce_WritesOneStatPerPeriod(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC) // a Wednesday
	store := newMemStatStore(testStrategy())

	s := NewScheduler(&canned{series: risingSeries(now, 48)}, store, nil, time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }

	s.runOnce(context.Background())

	require.Equal(t, 3, store.count())

	byPeriod := make(map[model.Period]model.AggregatedStat)
	for _, st := range store.all() {
		byPeriod[st.Period] = st
	}

	daily := byPeriod[model.PeriodDaily]
	assert.Equal(t, "EURUSD", daily.Asset)
	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), daily.Timestamp)
	assert.Equal(t, 24, daily.DataPoints)
	assert.Equal(t, model.TrendUp, daily.TrendDirection)

	weekly := byPeriod[model.PeriodWeekly]
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), weekly.Timestamp) // Monday
	assert.Equal(t, 48, weekly.DataPoints)

	monthly := byPeriod[model.PeriodMonthly]
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), monthly.Timestamp)
}

func TestRunOnce_RerunWithinWindowIsIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	store := newMemStatStore(testStrategy())

	s := NewScheduler(&canned{series: risingSeries(now, 48)}, store, nil, time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }

	s.runOnce(context.Background())
	require.Equal(t, 3, store.count())

	// an hour later, still the same daily/weekly/monthly windows
	s.now = func() time.Time { return now.Add(time.Hour) }
	s.runOnce(context.Background())
	assert.Equal(t, 3, store.count())
}

func TestRunOnce_NewDayOpensNewWindow(t *testing.T) {
	now := time.Date(2024, 6, 12, 23, 30, 0, 0, time.UTC)
	store := newMemStatStore(testStrategy())

	s := NewScheduler(&canned{series: risingSeries(now.Add(36*time.Hour), 96)}, store, nil, time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }
	s.runOnce(context.Background())
	require.Equal(t, 3, store.count())

	// crossing midnight starts a fresh daily window only
	s.now = func() time.Time { return now.Add(time.Hour) }
	s.runOnce(context.Background())
	assert.Equal(t, 4, store.count())
}

func TestRunOnce_EmptySeriesWritesNothing(t *testing.T) {
	store := newMemStatStore(testStrategy())
	s := NewScheduler(&canned{}, store, nil, time.Hour, zap.NewNop())
	s.runOnce(context.Background())
	assert.Equal(t, 0, store.count())
}

func TestWindowStart(t *testing.T) {
	wednesday := time.Date(2024, 6, 12, 18, 45, 12, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), windowStart(wednesday, model.PeriodDaily))
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), windowStart(wednesday, model.PeriodWeekly))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), windowStart(wednesday, model.PeriodMonthly))

	// a Sunday belongs to the week that started the previous Monday
	sunday := time.Date(2024, 6, 16, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), windowStart(sunday, model.PeriodWeekly))
}
