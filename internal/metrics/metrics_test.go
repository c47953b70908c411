package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRegister(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.Observe(audit.Entry{Action: "checkpoint_training", Result: "training"})
		m.SetIdentities(nil)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}
		found := map[string]bool{}
		for _, f := range families {
			found[f.GetName()] = true
		}
		for _, name := range []string{MetricCheckpointTotal, MetricAuditEntriesTotal, MetricIdentities} {
			if !found[name] {
				t.Errorf("metric %s not gathered", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatal(err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("expected duplicate registration to fail")
		}
	})
}

func TestObserveCountsByResultAndAction(t *testing.T) {
	m := NewMetrics()

	m.Observe(audit.Entry{Action: "recognition", Status: "acclimatizing"})
	m.Observe(audit.Entry{Action: "checkpoint_training", Result: "training"})
	m.Observe(audit.Entry{Action: "checkpoint_training", Result: "training"})
	m.Observe(audit.Entry{Action: "acclimatization_escalated", Result: "quarantined"})
	m.Observe(audit.Entry{Action: "checkpoint_quarantined", Result: "quarantined"})

	if v := counterValue(t, m.checkpoints.WithLabelValues("training")); v != 2 {
		t.Errorf("expected training=2, got %v", v)
	}
	if v := counterValue(t, m.checkpoints.WithLabelValues("quarantined")); v != 2 {
		t.Errorf("expected quarantined=2, got %v", v)
	}
	if v := counterValue(t, m.auditEntries.WithLabelValues("recognition")); v != 1 {
		t.Errorf("expected recognition=1, got %v", v)
	}
	if v := counterValue(t, m.auditEntries.WithLabelValues("checkpoint_training")); v != 2 {
		t.Errorf("expected checkpoint_training=2, got %v", v)
	}
}

func TestSetIdentitiesResetsMissingStatuses(t *testing.T) {
	m := NewMetrics()

	m.SetIdentities([]model.Identity{
		{ID: "a", Status: model.StatusAcclimatizing},
		{ID: "b", Status: model.StatusAcclimatizing},
		{ID: "c", Status: model.StatusQuarantined},
	})
	if v := gaugeValue(t, m.identities.WithLabelValues("acclimatizing")); v != 2 {
		t.Errorf("expected acclimatizing=2, got %v", v)
	}

	m.SetIdentities([]model.Identity{{ID: "c", Status: model.StatusQuarantined}})
	if v := gaugeValue(t, m.identities.WithLabelValues("acclimatizing")); v != 0 {
		t.Errorf("expected acclimatizing reset to 0, got %v", v)
	}
	if v := gaugeValue(t, m.identities.WithLabelValues("quarantined")); v != 1 {
		t.Errorf("expected quarantined=1, got %v", v)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	m.Register(reg)
	m.Observe(audit.Entry{Action: "checkpoint_denied", Result: "rate_limited"})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `stewardgate_checkpoint_total{result="rate_limited"} 1`) {
		t.Errorf("expected rate_limited counter in exposition, got:\n%s", body)
	}
}
