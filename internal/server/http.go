package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/metrics"
)

// healthTimeout bounds each dependency probe on /healthz.
const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPOptions selects the observability endpoints to mount. Nil fields
// leave the endpoint out.
type HTTPOptions struct {
	Gatherer prometheus.Gatherer
	Feed     http.Handler
	Checks   []HealthCheck
}

// HTTPHandler returns the observability mux wrapped in OpenTelemetry
// instrumentation: /metrics, /healthz, /ws/audit and /audit.
func (s *Server) HTTPHandler(opts HTTPOptions) http.Handler {
	mux := http.NewServeMux()
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Gatherer))
	}
	if opts.Feed != nil {
		mux.Handle("GET /ws/audit", opts.Feed)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.serveHealth(w, r, opts.Checks)
	})
	mux.HandleFunc("GET /audit", s.serveAudit)

	return otelhttp.NewHandler(mux, "stewardgate",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// serveAudit returns the in-memory audit log as a replay result.
// Query: identity=<id>, since=<seq>.
func (s *Server) serveAudit(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be a sequence number", http.StatusBadRequest)
			return
		}
		since = n
	}

	result := audit.Filter(s.gate.AuditSince(since), audit.ReplayFilter{
		IdentityID: r.URL.Query().Get("identity"),
	})
	writeJSON(w, http.StatusOK, result)
}

type healthReport struct {
	Status     string            `json:"status"`
	PolicyHash string            `json:"policy_hash,omitempty"`
	Checks     map[string]string `json:"checks,omitempty"`
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request, checks []HealthCheck) {
	report := healthReport{Status: "ok", PolicyHash: s.PolicyHash()}
	code := http.StatusOK
	if len(checks) > 0 {
		report.Checks = make(map[string]string, len(checks))
	}
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			report.Checks[c.Name] = err.Error()
			report.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		report.Checks[c.Name] = "ok"
	}
	writeJSON(w, code, report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
