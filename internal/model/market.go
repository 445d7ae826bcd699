package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar for a single asset.
type Candle struct {
	Asset     string          `json:"asset" db:"asset"`
	Open      decimal.Decimal `json:"o" db:"open"`
	High      decimal.Decimal `json:"h" db:"high"`
	Low       decimal.Decimal `json:"l" db:"low"`
	Close     decimal.Decimal `json:"c" db:"close"`
	Volume    decimal.Decimal `json:"v" db:"volume"`
	Timestamp time.Time       `json:"t" db:"time"`
}

// PriceSeries is an ordered run of candles for one asset.
// Timestamps are strictly increasing and every retained bar has a close;
// the fetcher enforces this before a series reaches any consumer.
type PriceSeries []Candle

// Empty reports whether the series carries no usable bars.
func (s PriceSeries) Empty() bool {
	return len(s) == 0
}

// Closes returns the close prices as float64, in bar order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close.InexactFloat64()
	}
	return closes
}

// Since returns the suffix of the series at or after the given time.
func (s PriceSeries) Since(t time.Time) PriceSeries {
	for i, c := range s {
		if !c.Timestamp.Before(t) {
			return s[i:]
		}
	}
	return nil
}

// Period is an aggregation window size.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Duration returns the wall-clock span the period covers.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// TrendDirection classifies the slope of a price window.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// Sentiment is the aggregate market mood for a window.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// AggregatedStat is one append-only statistical summary row for
// (asset, period, timestamp). At most one row exists per key.
type AggregatedStat struct {
	Asset              string          `json:"asset" db:"asset"`
	Period             Period          `json:"period" db:"period"`
	Timestamp          time.Time       `json:"timestamp" db:"timestamp"`
	DataPoints         int             `json:"data_points" db:"data_points"`
	PriceOpen          decimal.Decimal `json:"price_open" db:"price_open"`
	PriceClose         decimal.Decimal `json:"price_close" db:"price_close"`
	PriceHigh          decimal.Decimal `json:"price_high" db:"price_high"`
	PriceLow           decimal.Decimal `json:"price_low" db:"price_low"`
	PriceMean          decimal.Decimal `json:"price_mean" db:"price_mean"`
	VolumeTotal        decimal.Decimal `json:"volume_total" db:"volume_total"`
	VolumeMean         decimal.Decimal `json:"volume_mean" db:"volume_mean"`
	Volatility         float64         `json:"volatility" db:"volatility"`
	TrendDirection     TrendDirection  `json:"trend_direction" db:"trend_direction"`
	TrendStrength      float64         `json:"trend_strength" db:"trend_strength"`
	PriceChangePercent float64         `json:"price_change_percent" db:"price_change_percent"`
	MarketSentiment    Sentiment       `json:"market_sentiment" db:"market_sentiment"`
}
