package indicator

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"trading-core/internal/model"
)

// ErrEmptySeries is returned when there is nothing to aggregate.
var ErrEmptySeries = errors.New("indicator: empty price series")

// Thresholds are the strategy-tunable cutoffs for trend and sentiment
// classification. They come from the active StrategyConfig, never from
// constants in this package.
type Thresholds struct {
	// TrendStrengthMin is the minimum trend strength (0-100) for a trend
	// to count toward sentiment.
	TrendStrengthMin float64
	// DeadbandPercent is the absolute price-change percentage below which
	// a window is classified sideways.
	DeadbandPercent float64
}

// Trend is the regression view of a price window.
type Trend struct {
	Direction     model.TrendDirection
	Strength      float64 // R^2 scaled to 0-100
	ChangePercent float64
}

// Volatility returns the sample standard deviation of bar-over-bar
// percentage returns, expressed as a percentage. Fewer than two usable
// bars yields 0.
func Volatility(closes []float64) float64 {
	returns := percentReturns(closes)
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(returns)-1)) * 100
}

func percentReturns(closes []float64) []float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}

// CalculateTrend fits a line through close prices against bar index.
// Direction comes from the overall price change versus the deadband;
// strength is the fit's coefficient of determination scaled to 0-100.
func CalculateTrend(closes []float64, deadbandPercent float64) Trend {
	if len(closes) < 2 || closes[0] == 0 {
		return Trend{Direction: model.TrendSideways}
	}

	changePercent := (closes[len(closes)-1] - closes[0]) / closes[0] * 100

	direction := model.TrendSideways
	if changePercent > deadbandPercent {
		direction = model.TrendUp
	} else if changePercent < -deadbandPercent {
		direction = model.TrendDown
	}

	return Trend{
		Direction:     direction,
		Strength:      rSquared(closes) * 100,
		ChangePercent: changePercent,
	}
}

// rSquared is the coefficient of determination of a least-squares linear
// fit of y against index. A window with zero price variance has no
// explainable variance and scores 0.
func rSquared(y []float64) float64 {
	n := float64(len(y))

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, v := range y {
		pred := intercept + slope*float64(i)
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - meanY) * (v - meanY)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MarketSentiment scores a window bullish, bearish or neutral from three
// votes: the price trend (when strong enough), the volume trend as a
// confirmation of the price trend, and the bodies of the last five
// candles.
func MarketSentiment(series model.PriceSeries, th Thresholds) model.Sentiment {
	if len(series) < 10 {
		return model.SentimentNeutral
	}

	score := 0

	trend := CalculateTrend(series.Closes(), th.DeadbandPercent)
	switch {
	case trend.Direction == model.TrendUp && trend.Strength > th.TrendStrengthMin:
		score++
	case trend.Direction == model.TrendDown && trend.Strength > th.TrendStrengthMin:
		score--
	}

	volumes := make([]float64, len(series))
	for i, c := range series {
		volumes[i] = c.Volume.InexactFloat64()
	}
	volTrend := CalculateTrend(volumes, th.DeadbandPercent)
	if volTrend.Direction == model.TrendUp {
		// Rising volume reinforces whichever way price is moving.
		if trend.Direction == model.TrendUp {
			score++
		} else if trend.Direction == model.TrendDown {
			score--
		}
	}

	recent := series
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	bullish, bearish := 0, 0
	for _, c := range recent {
		switch {
		case c.Close.GreaterThan(c.Open):
			bullish++
		case c.Close.LessThan(c.Open):
			bearish++
		}
	}
	if bullish > bearish {
		score++
	} else if bearish > bullish {
		score--
	}

	switch {
	case score > 0:
		return model.SentimentBullish
	case score < 0:
		return model.SentimentBearish
	default:
		return model.SentimentNeutral
	}
}

// Aggregate rolls a price series up into one AggregatedStat for the
// given period, keyed by the provided window timestamp.
func Aggregate(asset string, series model.PriceSeries, period model.Period, ts time.Time, th Thresholds) (model.AggregatedStat, error) {
	if series.Empty() {
		return model.AggregatedStat{}, ErrEmptySeries
	}

	first := series[0].Close
	last := series[len(series)-1].Close
	high, low := first, first
	priceSum := decimal.Zero
	volumeSum := decimal.Zero
	for _, c := range series {
		if c.Close.GreaterThan(high) {
			high = c.Close
		}
		if c.Close.LessThan(low) {
			low = c.Close
		}
		priceSum = priceSum.Add(c.Close)
		volumeSum = volumeSum.Add(c.Volume)
	}
	count := decimal.NewFromInt(int64(len(series)))

	closes := series.Closes()
	trend := CalculateTrend(closes, th.DeadbandPercent)

	return model.AggregatedStat{
		Asset:              asset,
		Period:             period,
		Timestamp:          ts,
		DataPoints:         len(series),
		PriceOpen:          first,
		PriceClose:         last,
		PriceHigh:          high,
		PriceLow:           low,
		PriceMean:          priceSum.Div(count),
		VolumeTotal:        volumeSum,
		VolumeMean:         volumeSum.Div(count),
		Volatility:         Volatility(closes),
		TrendDirection:     trend.Direction,
		TrendStrength:      trend.Strength,
		PriceChangePercent: trend.ChangePercent,
		MarketSentiment:    MarketSentiment(series, th),
	}, nil
}
