// Package metrics provides Prometheus instrumentation for the market ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency tracks settlement latency per trade.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_trade_latency_seconds",
		Help:    "Trade settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeCost observes the LMSR cost charged per trade.
	TradeCost = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_trade_cost",
		Help:    "LMSR cost debited per trade",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
	})

	// TradeRejections counts trades rejected before any write, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_trade_rejections_total",
		Help: "Trades rejected during validation",
	}, []string{"reason"})

	// MarketsResolvedTotal counts market resolutions, by outcome.
	MarketsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_markets_resolved_total",
		Help: "Total number of markets resolved",
	}, []string{"outcome"})

	// PayoutsTotal accumulates resolution payouts credited to winners.
	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payouts_total",
		Help: "Cumulative resolution payouts credited",
	})

	// OpenMarkets tracks the number of currently open markets.
	OpenMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_open_markets",
		Help: "Number of currently open markets",
	})
)

// Handler returns the Prometheus metrics HTTP handler for whoever hosts
// the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
