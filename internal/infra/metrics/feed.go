package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(feedRecordsTotal, feedCursor) }

var (
	feedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telebot_feed_records_total",
			Help: "Change-feed records handled by feed and result.",
		},
		[]string{"feed", "result"}, // ok, error, rejected
	)

	feedCursor = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telebot_feed_cursor",
			Help: "Last acknowledged sequence number per feed.",
		},
		[]string{"feed"},
	)
)

func IncFeedRecord(feed, result string) {
	feedRecordsTotal.WithLabelValues(norm(feed), norm(result)).Inc()
}

func SetFeedCursor(feed string, seq int64) {
	feedCursor.WithLabelValues(norm(feed)).Set(float64(seq))
}
