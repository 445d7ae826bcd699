// Package fetcher pulls raw OHLCV history from the market data provider
// and normalizes it into a canonical PriceSeries. Every provider quirk
// (no data, nested column naming, missing columns, null closes) resolves
// to an empty series; the caller skips the asset for the cycle.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-core/internal/infrastructure"
	"trading-core/internal/model"
)

var requiredColumns = []string{"open", "high", "low", "close", "volume"}

// Fetcher is an HTTP client for the tabular OHLCV provider endpoint.
type Fetcher struct {
	baseURL      string
	client       *http.Client
	lookbackBars int
	barInterval  string
	logger       *zap.Logger
}

// New creates a fetcher against the provider base URL.
func New(baseURL string, lookbackBars int, barInterval string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 15 * time.Second},
		lookbackBars: lookbackBars,
		barInterval:  barInterval,
		logger:       logger,
	}
}

// providerResponse is the provider's tabular payload: parallel column
// arrays keyed by field name. Columns may be nested one level deeper
// under the asset symbol, depending on how many symbols the provider
// batched; both shapes are accepted.
type providerResponse struct {
	Symbol     string                     `json:"symbol"`
	Timestamps []int64                    `json:"timestamp"`
	Columns    map[string]json.RawMessage `json:"columns"`
}

// Fetch returns the recent price series for one asset. It never fails
// the cycle: any transport, shape or content problem is logged and
// yields an empty series.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) model.PriceSeries {
	endpoint := fmt.Sprintf("%s/v1/ohlcv/%s?limit=%d&interval=%s",
		f.baseURL, url.PathEscape(symbol), f.lookbackBars, url.QueryEscape(f.barInterval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		f.logger.Error("building provider request", zap.String("asset", symbol), zap.Error(err))
		return nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("provider unreachable", zap.String("asset", symbol), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("provider returned non-OK status",
			zap.String("asset", symbol), zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Warn("reading provider response", zap.String("asset", symbol), zap.Error(err))
		return nil
	}

	var payload providerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		f.logger.Warn("malformed provider payload", zap.String("asset", symbol), zap.Error(err))
		return nil
	}

	series := Normalize(symbol, payload)
	if series.Empty() {
		f.logger.Warn("no usable bars from provider", zap.String("asset", symbol))
		infrastructure.AssetsSkipped.WithLabelValues(symbol, "no_data").Inc()
	}
	return series
}

// Normalize converts a provider payload into a canonical series:
// single-level column names, strictly increasing timestamps, no bar
// without a close. Any missing required column makes the whole payload
// unusable.
func Normalize(symbol string, payload providerResponse) model.PriceSeries {
	if len(payload.Timestamps) == 0 {
		return nil
	}

	cols := make(map[string][]*float64, len(requiredColumns))
	for _, name := range requiredColumns {
		raw, ok := payload.Columns[name]
		if !ok {
			return nil
		}
		values := flattenColumn(raw, symbol)
		if values == nil || len(values) != len(payload.Timestamps) {
			return nil
		}
		cols[name] = values
	}

	series := make(model.PriceSeries, 0, len(payload.Timestamps))
	var prev time.Time
	for i, unix := range payload.Timestamps {
		ts := time.Unix(unix, 0).UTC()
		if !ts.After(prev) {
			continue // out-of-order or duplicate bar
		}
		if cols["close"][i] == nil {
			continue
		}
		if cols["open"][i] == nil || cols["high"][i] == nil || cols["low"][i] == nil || cols["volume"][i] == nil {
			continue
		}

		series = append(series, model.Candle{
			Asset:     symbol,
			Open:      decimal.NewFromFloat(*cols["open"][i]),
			High:      decimal.NewFromFloat(*cols["high"][i]),
			Low:       decimal.NewFromFloat(*cols["low"][i]),
			Close:     decimal.NewFromFloat(*cols["close"][i]),
			Volume:    decimal.NewFromFloat(*cols["volume"][i]),
			Timestamp: ts,
		})
		prev = ts
	}
	return series
}

// flattenColumn accepts either a flat value array or an object keyed by
// symbol one level down (the provider nests columns when it was asked
// for several symbols at once).
func flattenColumn(raw json.RawMessage, symbol string) []*float64 {
	var flat []*float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}

	var nested map[string][]*float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	if values, ok := nested[symbol]; ok {
		return values
	}
	if len(nested) == 1 {
		for _, values := range nested {
			return values
		}
	}
	return nil
}
