package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"trading-core/internal/infrastructure"
	"trading-core/internal/model"
	"trading-core/internal/signal"
)

// Fetcher supplies validated price series per asset.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) model.PriceSeries
}

type assetResult struct {
	asset  string
	series model.PriceSeries
	signal *model.Signal
}

// assetPool fans the per-asset fetch/compute/signal work out over a
// fixed set of workers. Assets are independent; one asset failing to
// produce data never touches the others.
type assetPool struct {
	fetcher     Fetcher
	generator   *signal.Generator
	workerCount int
	logger      *zap.Logger
}

func newAssetPool(fetcher Fetcher, generator *signal.Generator, workerCount int, logger *zap.Logger) *assetPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &assetPool{
		fetcher:     fetcher,
		generator:   generator,
		workerCount: workerCount,
		logger:      logger,
	}
}

// process runs every monitored asset through fetch -> RSI -> signal and
// returns whatever survived. Order is not guaranteed.
func (p *assetPool) process(ctx context.Context, assets []string, cfg model.StrategyConfig) []assetResult {
	jobs := make(chan string)
	results := make(chan assetResult, len(assets))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, jobs, results, cfg)
	}

	for _, asset := range assets {
		select {
		case jobs <- asset:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]assetResult, 0, len(assets))
	for r := range results {
		collected = append(collected, r)
	}
	return collected
}

func (p *assetPool) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- assetResult, cfg model.StrategyConfig) {
	defer wg.Done()

	for asset := range jobs {
		if ctx.Err() != nil {
			return
		}

		series := p.fetcher.Fetch(ctx, asset)
		if series.Empty() {
			// Already logged and counted by the fetcher.
			continue
		}

		sig := p.generator.Generate(asset, series, cfg)
		if sig != nil {
			infrastructure.SignalsGenerated.WithLabelValues(asset, string(sig.Direction)).Inc()
		}
		results <- assetResult{asset: asset, series: series, signal: sig}
	}
}
