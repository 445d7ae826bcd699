package app

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trading-core/internal/infrastructure"
	"trading-core/internal/lifecycle"
	"trading-core/internal/model"
	"trading-core/internal/signal"
)

// StrategyReader reads the active strategy once per cycle.
type StrategyReader interface {
	ActiveStrategy(ctx context.Context) (model.StrategyConfig, error)
}

// Executor places an accepted signal with the broker collaborator.
type Executor interface {
	Execute(ctx context.Context, userID int64, sig model.Signal) (string, error)
}

// Pipeline is the recurring analysis cycle: read strategy, fetch and
// analyze every monitored asset concurrently, publish signals, and
// drive pending signal requests to a terminal state. Nothing inside a
// cycle may kill the loop; a bad cycle logs and the next tick retries.
type Pipeline struct {
	strategies StrategyReader
	pool       *assetPool
	executor   Executor
	requests   *lifecycle.Requests
	trades     *lifecycle.Trades
	js         nats.JetStreamContext
	logger     *zap.Logger

	interval     time.Duration
	requestBatch int
	defaultAsset string
}

func NewPipeline(
	strategies StrategyReader,
	fetcher Fetcher,
	generator *signal.Generator,
	executor Executor,
	requests *lifecycle.Requests,
	trades *lifecycle.Trades,
	js nats.JetStreamContext,
	interval time.Duration,
	requestBatch int,
	workerCount int,
	defaultAsset string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		strategies:   strategies,
		pool:         newAssetPool(fetcher, generator, workerCount, logger),
		executor:     executor,
		requests:     requests,
		trades:       trades,
		js:           js,
		logger:       logger,
		interval:     interval,
		requestBatch: requestBatch,
		defaultAsset: defaultAsset,
	}
}

// Run blocks until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("analysis pipeline started", zap.Duration("interval", p.interval))
	p.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full analysis pass.
func (p *Pipeline) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		infrastructure.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	strat, err := p.strategies.ActiveStrategy(ctx)
	if err != nil {
		p.logger.Warn("cycle skipped", zap.Error(err))
		return
	}

	assets := strat.AssetsToMonitor
	if len(assets) == 0 {
		assets = []string{p.defaultAsset}
	}

	results := p.pool.process(ctx, assets, strat)

	var signals []model.Signal
	for _, r := range results {
		if r.signal == nil {
			continue
		}
		signals = append(signals, *r.signal)
		p.publishSignal(*r.signal)
	}

	p.logger.Info("cycle analyzed",
		zap.String("strategy", strat.Name),
		zap.Int("assets", len(assets)),
		zap.Int("results", len(results)),
		zap.Int("signals", len(signals)))

	if len(signals) == 0 {
		// Pending requests stay pending; the next cycle may have a target.
		return
	}
	if !strat.AllowTrading {
		p.logger.Info("trading disabled, signals published for visibility only")
		return
	}

	p.executeRequests(ctx, signals[0])
}

// executeRequests applies the cycle's first target signal to every
// pending user request, transitioning each to executed or failed.
func (p *Pipeline) executeRequests(ctx context.Context, target model.Signal) {
	pending, err := p.requests.Pending(ctx, p.requestBatch)
	if err != nil {
		p.logger.Error("fetching pending requests", zap.Error(err))
		return
	}

	for _, req := range pending {
		brokerRef, err := p.executor.Execute(ctx, req.UserID, target)
		if err != nil {
			p.logger.Warn("trade execution failed",
				zap.Int64("request_id", req.ID),
				zap.Int64("user_id", req.UserID),
				zap.Error(err))
			if err := p.requests.MarkFailed(ctx, req.ID); err != nil {
				p.logger.Error("marking request failed", zap.Int64("request_id", req.ID), zap.Error(err))
			}
			continue
		}

		if _, err := p.trades.Open(ctx, req.UserID, brokerRef, target); err != nil {
			// The broker accepted the order; losing the row is a
			// persistence failure, not an execution failure.
			p.logger.Error("recording opened trade", zap.Int64("request_id", req.ID), zap.Error(err))
		}
		if err := p.requests.MarkExecuted(ctx, req.ID); err != nil {
			p.logger.Error("marking request executed", zap.Int64("request_id", req.ID), zap.Error(err))
		}
	}
}

func (p *Pipeline) publishSignal(sig model.Signal) {
	if p.js == nil {
		return
	}
	data, err := json.Marshal(sig)
	if err != nil {
		p.logger.Error("marshalling signal", zap.Error(err))
		return
	}
	subject := "core.signals." + sig.Asset
	if _, err := p.js.Publish(subject, data); err != nil {
		p.logger.Error("publishing signal", zap.String("subject", subject), zap.Error(err))
	}
}
