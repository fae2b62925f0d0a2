package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(votesTotal, casConflictsTotal, pollLogsExpiredTotal) }

var (
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telebot_poll_votes_total",
			Help: "Recorded poll votes by result.",
		},
		[]string{"result"}, // ok, conflict_exhausted, log_missing, invalid_state, error
	)

	casConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telebot_poll_log_cas_conflicts_total",
			Help: "Version conflicts hit while appending to poll event logs.",
		},
	)

	pollLogsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telebot_poll_logs_expired_total",
			Help: "Poll logs removed after their TTL.",
		},
	)
)

func IncVote(result string) { votesTotal.WithLabelValues(norm(result)).Inc() }

func IncCASConflict() { casConflictsTotal.Inc() }

func AddPollLogsExpired(n int64) { pollLogsExpiredTotal.Add(float64(n)) }
