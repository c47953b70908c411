// Package metrics exports gate decisions as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

// Metric names.
const (
	MetricCheckpointTotal   = "stewardgate_checkpoint_total"
	MetricAuditEntriesTotal = "stewardgate_audit_entries_total"
	MetricIdentities        = "stewardgate_identities"
)

var statuses = []model.Status{
	model.StatusAcclimatizing,
	model.StatusQuarantined,
	model.StatusDenied,
	model.StatusApproved,
}

// Metrics holds the gate collectors. All operations are thread-safe.
type Metrics struct {
	checkpoints  *prometheus.CounterVec
	auditEntries *prometheus.CounterVec
	identities   *prometheus.GaugeVec
}

// NewMetrics creates the collectors. They are not registered; call
// Register to add them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCheckpointTotal,
			Help: "Checkpoint decisions by result",
		}, []string{"result"}),
		auditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAuditEntriesTotal,
			Help: "Audit entries appended by action",
		}, []string{"action"}),
		identities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricIdentities,
			Help: "Registered identities by status",
		}, []string{"status"}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.checkpoints, m.auditEntries, m.identities}
}

// Observe counts an audit entry. Entries carrying a result are checkpoint
// decisions and are also counted by result.
func (m *Metrics) Observe(e audit.Entry) {
	m.auditEntries.WithLabelValues(e.Action).Inc()
	if e.Result != "" {
		m.checkpoints.WithLabelValues(e.Result).Inc()
	}
}

// SetIdentities refreshes the per-status gauge from a registry snapshot.
// Statuses with no identities are reported as zero.
func (m *Metrics) SetIdentities(ids []model.Identity) {
	counts := make(map[model.Status]int, len(statuses))
	for _, id := range ids {
		counts[id.Status]++
	}
	for _, s := range statuses {
		m.identities.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// Handler serves the exposition format for reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
