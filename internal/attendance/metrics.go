package attendance

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the attendance collectors.
type Metrics struct {
	SessionsOpened     prometheus.Counter
	SessionsClosed     *prometheus.CounterVec
	BreaksStarted      prometheus.Counter
	BreaksEnded        prometheus.Counter
	BreakMinutes       prometheus.Histogram
	OpenBreakAnomalies prometheus.Counter
	OperationErrors    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_sessions_opened_total",
			Help: "Logins that opened or resumed a daily attendance session.",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_sessions_closed_total",
			Help: "Logouts that closed a daily attendance session.",
		}, []string{"forced_break"}),
		BreaksStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_breaks_started_total",
			Help: "Breaks opened in the ledger.",
		}),
		BreaksEnded: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_breaks_ended_total",
			Help: "Breaks closed explicitly by the user.",
		}),
		BreakMinutes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_break_minutes",
			Help:    "Accrued minutes per closed break.",
			Buckets: []float64{1, 5, 10, 15, 30, 45, 60, 90, 120, 240},
		}),
		OpenBreakAnomalies: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_open_break_anomalies_total",
			Help: "Ledger states with an unexpected number of open break entries.",
		}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_operation_errors_total",
			Help: "Failed attendance operations by kind.",
		}, []string{"operation", "kind"}),
	}
}

func (m *Metrics) sessionClosed(forced bool) {
	m.SessionsClosed.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

func (m *Metrics) breakClosed(minutes int) {
	m.BreakMinutes.Observe(float64(minutes))
}

func (m *Metrics) failed(operation string, err error) {
	m.OperationErrors.WithLabelValues(operation, ErrorKind(err)).Inc()
}
