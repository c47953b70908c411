package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/config"
	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		GRPCPort:         freePort(t),
		PolicyPath:       filepath.Join(root, "policy.yaml"),
		AuditLogPath:     filepath.Join(root, "audit.jsonl"),
		SQLitePath:       filepath.Join(root, "gate.db"),
		CouncilDir:       filepath.Join(root, "council"),
		SnapshotInterval: time.Hour,
		LogFormat:        "text",
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestFlushPersistsIdentitiesAndAudit(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg)
	g := d.Gate()

	if _, err := g.RequestRecognition(model.Descriptor{ID: "h1", Kind: model.KindHuman}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Checkpoint("h1", "open_door", nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// A second flush with nothing new must not duplicate entries.
	if err := d.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	entries, err := d.store.AuditEntries(context.Background(), "h1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 archived entries, got %d", len(entries))
	}
	ids, err := d.store.LoadIdentities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0].FailedAttempts != 1 {
		t.Errorf("unexpected persisted identities %+v", ids)
	}
}

func TestRestartRestoresState(t *testing.T) {
	cfg := testConfig(t)

	d1, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	g := d1.Gate()
	g.RequestRecognition(model.Descriptor{ID: "h1", Kind: model.KindHuman})
	g.Checkpoint("h1", "walk", nil)
	g.Checkpoint("h1", "walk", nil)
	if err := d1.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	lastSeq := g.AuditLog()[2].Seq
	if err := d1.Close(); err != nil {
		t.Fatal(err)
	}

	d2 := newTestDaemon(t, cfg)
	rec, ok := d2.Gate().Lookup("h1")
	if !ok {
		t.Fatal("expected h1 restored")
	}
	if rec.FailedAttempts != 2 || rec.Phase != model.PhaseTraining {
		t.Errorf("unexpected restored record %+v", rec)
	}

	d2.Gate().Checkpoint("h1", "walk", nil)
	entries := d2.Gate().AuditLog()
	if len(entries) != 1 || entries[0].Seq != lastSeq+1 {
		t.Errorf("expected sequence to continue after %d, got %+v", lastSeq, entries)
	}

	r := audit.Verify(cfg.AuditLogPath)
	if !r.Valid || r.Lines != 4 {
		t.Errorf("expected audit chain to span restarts, got %+v", r)
	}
}

func TestHTTPHandlerHealth(t *testing.T) {
	d := newTestDaemon(t, testConfig(t))

	rr := httptest.NewRecorder()
	d.HTTPHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report struct {
		Status     string            `json:"status"`
		PolicyHash string            `json:"policy_hash"`
		Checks     map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Checks["sqlite"] != "ok" || report.PolicyHash == "" {
		t.Errorf("unexpected health report %+v", report)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	d.Gate().RequestRecognition(model.Descriptor{ID: "w1", Kind: model.KindMarineEntity})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	s, err := store.Open(context.Background(), cfg.SQLitePath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seq, err := s.LastSeq(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Errorf("expected final flush to archive 1 entry, got last seq %d", seq)
	}
}

func TestNewWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLitePath = ""
	cfg.AuditLogPath = ""
	d := newTestDaemon(t, cfg)

	d.Gate().RequestRecognition(model.Descriptor{ID: "h1", Kind: model.KindHuman})
	if err := d.Flush(context.Background()); err != nil {
		t.Errorf("expected flush without store to succeed, got %v", err)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:" + strconv.Itoa(freePort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := New(ctx, cfg, nil); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}

func TestNewInvalidPolicy(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.PolicyPath, []byte("grace_threshold: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected invalid policy to fail")
	}
}

func TestPIDLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stewardgate.pid")

	if err := acquirePIDLock(path); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := acquirePIDLock(path); err == nil {
		t.Fatal("expected lock held by this process to be rejected")
	}

	if err := os.WriteFile(path, []byte("999999999"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := acquirePIDLock(path); err != nil {
		t.Fatalf("expected stale lock to be replaced: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("expected our PID in lock file, got %s", data)
	}
}
