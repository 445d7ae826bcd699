// Package signal turns indicator output into directional trade signals
// under the thresholds of the active strategy.
package signal

import (
	"math"
	"time"

	"go.uber.org/zap"

	"trading-core/internal/indicator"
	"trading-core/internal/model"
)

// MinLookbackBars is the minimum series length worth evaluating.
const MinLookbackBars = 20

// Generator applies RSI thresholds to a price series. It emits at most
// one signal per asset per cycle and never consults AllowTrading: gating
// execution is the pipeline's job, visibility is everyone's.
type Generator struct {
	logger *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate evaluates one asset. A nil result means no signal this cycle:
// thin history, undefined RSI, or RSI inside the neutral band.
func (g *Generator) Generate(asset string, series model.PriceSeries, cfg model.StrategyConfig) *model.Signal {
	if series.Empty() || len(series) < MinLookbackBars {
		return nil
	}

	period := cfg.RSIPeriod
	if period <= 0 {
		period = indicator.DefaultRSIPeriod
	}

	rsi := indicator.CalculateRSI(series.Closes(), period)
	current := indicator.Latest(rsi)
	if math.IsNaN(current) {
		g.logger.Debug("rsi undefined, skipping", zap.String("asset", asset))
		return nil
	}

	var direction model.Direction
	switch {
	case current < cfg.RSIOversold:
		direction = model.DirectionCall
	case current > cfg.RSIOverbought:
		direction = model.DirectionPut
	default:
		return nil
	}

	g.logger.Info("signal generated",
		zap.String("asset", asset),
		zap.String("direction", string(direction)),
		zap.Float64("rsi", current))

	return &model.Signal{
		Asset:            asset,
		Direction:        direction,
		Amount:           cfg.DefaultAmount,
		TimeframeSeconds: cfg.DefaultTimeframeSeconds,
		Indicator:        "RSI",
		Value:            current,
		GeneratedAt:      time.Now().UTC(),
	}
}
