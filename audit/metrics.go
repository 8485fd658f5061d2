package audit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const AlertLoginFailureSpike AlertType = "login_failure_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultFailureWindow    = time.Minute
	defaultFailureThreshold = 50
)

// MetricsSink counts decisions by result and reason and raises an alert
// when failed logins, bad MFA codes and rate-limit denials spike inside a
// sliding window.
type MetricsSink struct {
	decisions *prometheus.CounterVec

	mu        sync.Mutex
	failures  []time.Time
	window    time.Duration
	threshold int
	alertFn   AlertFunc
	now       func() time.Time
}

// NewMetricsSink registers authlab_guard_decisions_total on reg. alertFn
// may be nil to disable spike detection.
func NewMetricsSink(reg prometheus.Registerer, alertFn AlertFunc) *MetricsSink {
	return &MetricsSink{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "authlab",
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Guard decisions by audit result and reason.",
		}, []string{"result", "reason"}),
		window:    defaultFailureWindow,
		threshold: defaultFailureThreshold,
		alertFn:   alertFn,
		now:       time.Now,
	}
}

func (m *MetricsSink) Append(_ context.Context, rec Record) error {
	m.decisions.WithLabelValues(rec.Result, rec.Reason).Inc()
	if m.alertFn != nil && isFailure(rec) {
		m.recordFailure()
	}
	return nil
}

// loginFailureReasons are the reasons that count toward a login failure
// spike. Anonymous page hits (denied/unauthorized) do not.
var loginFailureReasons = map[string]bool{
	"no_user":      true,
	"bad_password": true,
	"mfa_bad":      true,
	"ratelimited":  true,
}

func isFailure(rec Record) bool {
	return loginFailureReasons[rec.Reason]
}

func (m *MetricsSink) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.failures = append(m.failures, now)
	m.failures = trimWindow(m.failures, now, m.window)

	if len(m.failures) >= m.threshold {
		m.alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "authentication failure rate exceeds threshold",
			Count:     len(m.failures),
			Threshold: m.threshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		m.failures = m.failures[:0]
	}
}

// trimWindow removes entries older than now-window from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
