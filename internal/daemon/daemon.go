// Package daemon assembles the long-running gate service: the gate with
// all of its observers, persistence, the gRPC server and the HTTP
// observability endpoints.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/stewardgate/internal/alert"
	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/config"
	"github.com/ppiankov/stewardgate/internal/council"
	"github.com/ppiankov/stewardgate/internal/feed"
	"github.com/ppiankov/stewardgate/internal/gate"
	"github.com/ppiankov/stewardgate/internal/metrics"
	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/policy"
	"github.com/ppiankov/stewardgate/internal/relay"
	"github.com/ppiankov/stewardgate/internal/server"
	"github.com/ppiankov/stewardgate/internal/store"
)

// shutdownTimeout bounds the HTTP shutdown and the final flush.
const shutdownTimeout = 5 * time.Second

// Daemon owns every component of a running gate service.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	gate     *gate.Gate
	server   *server.Server
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	alerts   *alert.Router
	hub      *feed.Hub

	fileLog *audit.FileLog
	store   *store.SQLite
	redis   *redis.Client
	relay   *relay.Relay

	flushMu    sync.Mutex
	flushedSeq uint64
}

// New builds the daemon. Persisted identities are restored and audit
// sequence numbers continue after the last archived entry.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		metrics:  metrics.NewMetrics(),
		alerts:   &alert.Router{},
		hub:      feed.NewHub(0, 0, logger),
	}
	built := false
	defer func() {
		if !built {
			d.Close()
		}
	}()

	if err := d.metrics.Register(d.registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	d.alerts.Swap(alert.NewDispatcher(policyCfg.Alerts, logger))

	observers := []gate.Observer{d.metrics, d.alerts, d.hub}

	if cfg.AuditLogPath != "" {
		d.fileLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		d.fileLog.SetLogger(logger)
		observers = append([]gate.Observer{d.fileLog}, observers...)
	}

	if cfg.RedisAddr != "" {
		d.redis, err = relay.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		d.relay = relay.New(d.redis, cfg.RedisChannel, logger)
		observers = append(observers, d.relay)
	}

	opts := []gate.Option{
		gate.WithPolicy(policyCfg),
		gate.WithLogger(logger),
		gate.WithObserver(observers...),
	}

	var restored []model.Identity
	if cfg.SQLitePath != "" {
		d.store, err = store.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		restored, err = d.store.LoadIdentities(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load identities: %w", err)
		}
		d.flushedSeq, err = d.store.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit sequence: %w", err)
		}
		opts = append(opts, gate.WithStartSeq(d.flushedSeq))
	}

	d.gate = gate.New(opts...)
	if n := d.gate.Restore(restored); n > 0 {
		logger.Info("restored identities", "count", n, "start_seq", d.flushedSeq)
	}
	d.metrics.SetIdentities(d.gate.List())

	councilDir := cfg.CouncilDir
	if councilDir == "" {
		councilDir = council.DefaultDir()
	}
	reviews, err := council.NewStore(councilDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create council store: %w", err)
	}

	d.server = server.New(server.Config{Port: cfg.GRPCPort, PolicyPath: cfg.PolicyPath},
		d.gate, council.New(reviews, d.gate), d.alerts, logger)
	d.server.SetPolicyHash(policyHash)
	built = true
	return d, nil
}

// Gate returns the daemon's gate.
func (d *Daemon) Gate() *gate.Gate {
	return d.gate
}

// Server returns the gRPC server.
func (d *Daemon) Server() *server.Server {
	return d.server
}

// HTTPHandler returns the observability handler with every health probe
// the daemon has dependencies for.
func (d *Daemon) HTTPHandler() http.Handler {
	var checks []server.HealthCheck
	if d.store != nil {
		checks = append(checks, server.HealthCheck{Name: "sqlite", Check: d.store.HealthCheck})
	}
	if d.relay != nil {
		checks = append(checks, server.HealthCheck{Name: "redis", Check: d.relay.HealthCheck})
	}
	return d.server.HTTPHandler(server.HTTPOptions{
		Gatherer: d.registry,
		Feed:     d.hub,
		Checks:   checks,
	})
}

// Run serves gRPC and HTTP until ctx is cancelled, flushing state to the
// store on every snapshot interval and once more on shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.PIDFile != "" {
		if err := acquirePIDLock(d.cfg.PIDFile); err != nil {
			return fmt.Errorf("acquire PID lock: %w", err)
		}
		defer func() { _ = os.Remove(d.cfg.PIDFile) }()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.cfg.PolicyPath != "" {
		reloader, err := server.NewReloader(d.server, []string{d.cfg.PolicyPath})
		if err != nil {
			d.logger.Warn("hot-reload disabled", "error", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	errCh := make(chan error, 2)

	var httpSrv *http.Server
	if d.cfg.HTTPPort > 0 {
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", d.cfg.HTTPPort),
			Handler:           d.HTTPHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
		d.logger.Info("http endpoints listening", "port", d.cfg.HTTPPort)
	}

	go func() {
		if err := d.server.Serve(); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	d.logger.Info("gate server listening", "port", d.cfg.GRPCPort, "policy_hash", d.server.PolicyHash())

	go d.runSnapshotSweeper(ctx)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	d.logger.Info("shutting down gate server")
	d.server.GracefulStop()
	d.hub.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	if err := d.Flush(shutdownCtx); err != nil {
		d.logger.Error("final flush failed", "error", err)
	}
	return runErr
}

// runSnapshotSweeper periodically flushes gate state.
func (d *Daemon) runSnapshotSweeper(ctx context.Context) {
	interval := d.cfg.SnapshotInterval
	if interval <= 0 {
		interval = config.DefaultSnapshotInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Flush(ctx); err != nil {
				d.logger.Warn("snapshot flush failed", "error", err)
			}
		}
	}
}

// Flush refreshes the identity gauge and, when a store is configured,
// saves every identity and archives audit entries not yet written.
func (d *Daemon) Flush(ctx context.Context) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	ids := d.gate.List()
	d.metrics.SetIdentities(ids)
	if d.store == nil {
		return nil
	}

	if err := d.store.SaveIdentities(ctx, ids); err != nil {
		return err
	}
	entries := d.gate.AuditSince(d.flushedSeq)
	if len(entries) == 0 {
		return nil
	}
	n, err := d.store.AppendAudit(ctx, entries)
	if err != nil {
		return err
	}
	d.flushedSeq = entries[len(entries)-1].Seq
	d.logger.Debug("snapshot flushed", "identities", len(ids), "audit_entries", n, "seq", d.flushedSeq)
	return nil
}

// Close releases files and connections. Safe to call on a partially
// built daemon.
func (d *Daemon) Close() error {
	var errs []error
	if d.relay != nil {
		d.relay.Close()
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.fileLog != nil {
		errs = append(errs, d.fileLog.Close())
	}
	return errors.Join(errs...)
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(data))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another daemon is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file.
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
