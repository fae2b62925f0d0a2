package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcileTotal, routeSyncTotal) }

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telebot_schedule_reconcile_total",
			Help: "Posting rule reconciliations by action (create/update/delete/noop) and result.",
		},
		[]string{"action", "result"},
	)

	routeSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telebot_route_sync_total",
			Help: "Bot route synchronizations by action and result.",
		},
		[]string{"action", "result"},
	)
)

func IncReconcile(action string, err error) {
	reconcileTotal.WithLabelValues(norm(action), result(err)).Inc()
}

func IncRouteSync(action string, err error) {
	routeSyncTotal.WithLabelValues(norm(action), result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
