package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "analysis_cycle_duration_seconds",
		Help: "Duration of one full analysis cycle",
	})

	AssetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assets_skipped_total",
		Help: "Assets skipped within a cycle, by reason",
	}, []string{"asset", "reason"})

	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signals_generated_total",
		Help: "Trade signals emitted by the generator",
	}, []string{"asset", "direction"})

	TradesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trades_opened_total",
		Help: "Trades placed with the execution collaborator",
	})

	TradesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_settled_total",
		Help: "Trades settled, by outcome",
	}, []string{"outcome"})

	StatsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregated_stats_persisted_total",
		Help: "Aggregated stat rows written, by period",
	}, []string{"period"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)
