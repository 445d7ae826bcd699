// Package aggregator periodically rolls validated price series up into
// daily, weekly and monthly statistical summaries and appends them to
// the store. Rows are keyed by (asset, period, window start); rerunning
// a window is an idempotent no-op.
package aggregator

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trading-core/internal/indicator"
	"trading-core/internal/infrastructure"
	"trading-core/internal/model"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	ActiveStrategy(ctx context.Context) (model.StrategyConfig, error)
	InsertAggregatedStat(ctx context.Context, stat model.AggregatedStat) (bool, error)
}

// SeriesFetcher supplies the validated series the summaries are built
// from.
type SeriesFetcher interface {
	Fetch(ctx context.Context, symbol string) model.PriceSeries
}

// Scheduler runs the aggregation cadence independently of the signal
// pipeline.
type Scheduler struct {
	fetcher  SeriesFetcher
	store    Store
	js       nats.JetStreamContext
	logger   *zap.Logger
	interval time.Duration
	periods  []model.Period
	now      func() time.Time
}

func NewScheduler(fetcher SeriesFetcher, store Store, js nats.JetStreamContext, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		fetcher:  fetcher,
		store:    store,
		js:       js,
		logger:   logger,
		interval: interval,
		periods:  []model.Period{model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly},
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled, aggregating on a fixed
// cadence. A failed run never stops the ticker.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("aggregation scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	strat, err := s.store.ActiveStrategy(ctx)
	if err != nil {
		s.logger.Warn("skipping aggregation run", zap.Error(err))
		return
	}

	thresholds := indicator.Thresholds{
		TrendStrengthMin: strat.TrendStrengthMin,
		DeadbandPercent:  strat.TrendDeadbandPercent,
	}

	now := s.now().UTC()
	for _, asset := range strat.AssetsToMonitor {
		series := s.fetcher.Fetch(ctx, asset)
		if series.Empty() {
			continue
		}

		for _, period := range s.periods {
			window := series.Since(now.Add(-period.Duration()))
			stat, err := indicator.Aggregate(asset, window, period, windowStart(now, period), thresholds)
			if err != nil {
				s.logger.Debug("nothing to aggregate",
					zap.String("asset", asset), zap.String("period", string(period)))
				continue
			}

			inserted, err := s.store.InsertAggregatedStat(ctx, stat)
			if err != nil {
				s.logger.Error("persisting aggregated stat",
					zap.String("asset", asset), zap.String("period", string(period)), zap.Error(err))
				continue
			}
			if !inserted {
				continue // window already recorded
			}

			infrastructure.StatsPersisted.WithLabelValues(string(period)).Inc()
			s.publish(stat)
		}
	}
}

func (s *Scheduler) publish(stat model.AggregatedStat) {
	if s.js == nil {
		return
	}
	data, err := json.Marshal(stat)
	if err != nil {
		s.logger.Error("marshalling aggregated stat", zap.Error(err))
		return
	}
	subject := "core.stats." + string(stat.Period) + "." + stat.Asset
	if _, err := s.js.Publish(subject, data); err != nil {
		s.logger.Error("publishing aggregated stat", zap.String("subject", subject), zap.Error(err))
	}
}

// windowStart truncates now to the start of the aggregation window so a
// period maps to exactly one timestamp key.
func windowStart(now time.Time, period model.Period) time.Time {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch period {
	case model.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday start
		return day.AddDate(0, 0, -offset)
	case model.PeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}
