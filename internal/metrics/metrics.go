// Package metrics holds the Prometheus collectors updated by the engine.
//
//   - reentrybot_orders_total{side,kind}          orders filled
//   - reentrybot_order_failures_total{kind}       orders rejected or failed
//   - reentrybot_data_unavailable_total{symbol}   ticks skipped for missing candles
//   - reentrybot_notify_failures_total            notifications not delivered
//   - reentrybot_transitions_total{from,to}       applied state transitions
//   - reentrybot_phase{symbol}                    0 flat, 1 open, 2 waiting re-entry
//   - reentrybot_consecutive_failures{symbol}     failed ticks in a row
//
// Collectors are registered in init() and served at /metrics by internal/web.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentrybot_orders_total",
			Help: "Orders filled",
		},
		[]string{"side", "kind"},
	)

	orderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentrybot_order_failures_total",
			Help: "Orders rejected by risk or failed at the execution provider",
		},
		[]string{"kind"},
	)

	dataUnavailable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentrybot_data_unavailable_total",
			Help: "Ticks skipped because candles were unavailable or too short",
		},
		[]string{"symbol"},
	)

	notifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reentrybot_notify_failures_total",
			Help: "Notifications that could not be delivered",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reentrybot_transitions_total",
			Help: "Applied state transitions",
		},
		[]string{"from", "to"},
	)

	phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reentrybot_phase",
			Help: "Current phase per symbol (0 flat, 1 open, 2 waiting re-entry)",
		},
		[]string{"symbol"},
	)

	// consecutive failures are the escalation signal for a symbol stuck on errors.
	failures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reentrybot_consecutive_failures",
			Help: "Consecutive failed ticks per symbol",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(orders, orderFailures, dataUnavailable, notifyFailures)
	prometheus.MustRegister(transitions, phase, failures)
}

func IncOrder(side, kind string)       { orders.WithLabelValues(side, kind).Inc() }
func IncOrderFailure(kind string)      { orderFailures.WithLabelValues(kind).Inc() }
func IncDataUnavailable(symbol string) { dataUnavailable.WithLabelValues(symbol).Inc() }
func IncNotifyFailure()                { notifyFailures.Inc() }
func IncTransition(from, to string)    { transitions.WithLabelValues(from, to).Inc() }
func SetPhase(symbol string, p int)    { phase.WithLabelValues(symbol).Set(float64(p)) }
func SetFailures(symbol string, n int) { failures.WithLabelValues(symbol).Set(float64(n)) }

