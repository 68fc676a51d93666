package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

var (
	bookUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_updates_total",
			Help: "Order book updates applied, by kind (snapshot|delta)",
		},
		[]string{"kind"},
	)

	bookDesyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "book_desyncs_total",
			Help: "Level-count violations forcing a fresh snapshot",
		},
	)

	snapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "book_snapshots_published_total",
			Help: "Serialized book snapshots handed to the bus",
		},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_orders_placed_total",
			Help: "Orders accepted by the venue, by side",
		},
		[]string{"side"},
	)

	publishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "book_publish_failures_total",
			Help: "Snapshot publishes that failed to reach the bus",
		},
	)

	actionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_actions_total",
			Help: "Policy actions processed, by outcome",
		},
		[]string{"outcome"},
	)

	fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_fills_total",
			Help: "Fill notifications, by kind (open|add|close|flip|duplicate|unknown)",
		},
		[]string{"kind"},
	)

	tradesClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oms_trades_closed_total",
			Help: "Trades closed",
		},
	)

	tradeReward = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_last_trade_reward_bps",
			Help: "Risk-adjusted reward of the last closed trade in basis points",
		},
	)

	accountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_account_balance_usdt",
			Help: "Last venue-pushed account balance",
		},
	)

	maxDrawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_max_drawdown_ratio",
			Help: "Worst observed unrealized PnL ratio",
		},
	)

	fillBufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_fill_buffer_depth",
			Help: "Fills currently held in the time-window buffer",
		},
	)
)

func init() {
	prometheus.MustRegister(bookUpdates, bookDesyncs, snapshotsPublished, publishFailures)
	prometheus.MustRegister(ordersPlaced, actionOutcomes, fills, tradesClosed, tradeReward)
	prometheus.MustRegister(accountBalance, maxDrawdown, fillBufferDepth)
}

func IncBookUpdate(kind string)     { bookUpdates.WithLabelValues(kind).Inc() }
func IncBookDesync()                { bookDesyncs.Inc() }
func IncSnapshotPublished()         { snapshotsPublished.Inc() }
func IncPublishFailure()            { publishFailures.Inc() }
func IncAction(outcome string)      { actionOutcomes.WithLabelValues(outcome).Inc() }
func IncOrderPlaced(side string)    { ordersPlaced.WithLabelValues(side).Inc() }
func IncFill(kind string)           { fills.WithLabelValues(kind).Inc() }
func IncTradeClosed(reward float64) { tradesClosed.Inc(); tradeReward.Set(reward) }
func SetAccountBalance(v float64)   { accountBalance.Set(v) }
func SetMaxDrawdown(v float64)      { maxDrawdown.Set(v) }
func SetFillBufferDepth(n int)      { fillBufferDepth.Set(float64(n)) }

// Serve exposes /metrics on addr. Blocks; run it on its own goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logs.Errorf("metrics server stopped: %v", err)
	}
}
