// Package metrics exposes Prometheus counters for grading and progress writes.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "learn"

// Metrics holds the progress tracker collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AttemptsGraded      *prometheus.CounterVec
	SubmissionsRejected *prometheus.CounterVec
	WriteConflicts      prometheus.Counter
	YearsCompleted      prometheus.Counter
}

// New creates the collectors on a fresh registry, with Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AttemptsGraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_graded_total",
			Help:      "Number of quiz attempts graded and recorded.",
		}, []string{"year", "outcome"}),
		SubmissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_rejected_total",
			Help:      "Number of submissions rejected, by reason.",
		}, []string{"reason"}),
		WriteConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Number of optimistic progress writes that lost a race and were retried.",
		}),
		YearsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_completed_total",
			Help:      "Number of academic years completed by students.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AttemptsGraded,
		m.SubmissionsRejected,
		m.WriteConflicts,
		m.YearsCompleted,
	)
	return m
}

// AttemptRecorded counts a recorded attempt for year.
func (m *Metrics) AttemptRecorded(year int, approved bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if approved {
		outcome = "approved"
	}
	m.AttemptsGraded.WithLabelValues(strconv.Itoa(year), outcome).Inc()
}

// SubmissionRejected counts a rejected submission.
func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.SubmissionsRejected.WithLabelValues(reason).Inc()
}

// WriteConflict counts a lost optimistic write.
func (m *Metrics) WriteConflict() {
	if m == nil {
		return
	}
	m.WriteConflicts.Inc()
}

// YearCompleted counts a year completion transition.
func (m *Metrics) YearCompleted() {
	if m == nil {
		return
	}
	m.YearsCompleted.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
