package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/stewardgate/internal/audit"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{PolicyPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	return s
}

func recognize(t *testing.T, s *Server, id, kind string) {
	t.Helper()
	if _, _, err := s.handleRecognize(context.Background(), &mcpsdk.CallToolRequest{}, RecognizeInput{ID: id, Kind: kind}); err != nil {
		t.Fatalf("recognize %s: %v", id, err)
	}
}

func TestRecognizeStatuses(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		id, kind, want string
	}{
		{"h1", "human", "acclimatizing"},
		{"a1", "automated_agent", "acclimatizing"},
		{"w1", "marine_entity", "denied"},
		{"x1", "kraken", "quarantined"},
	}
	for _, tt := range tests {
		_, out, err := s.handleRecognize(ctx, &mcpsdk.CallToolRequest{}, RecognizeInput{ID: tt.id, Kind: tt.kind})
		if err != nil {
			t.Fatalf("%s: %v", tt.id, err)
		}
		if out.Status != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.id, tt.want, out.Status)
		}
	}
}

func TestRecognizeInvalid(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleRecognize(context.Background(), &mcpsdk.CallToolRequest{}, RecognizeInput{Kind: "human"})
	if err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestCheckpointAllowedDuringTraining(t *testing.T) {
	s := newTestServer(t)
	recognize(t, s, "h1", "human")

	result, out, err := s.handleCheckpoint(context.Background(), &mcpsdk.CallToolRequest{}, CheckpointInput{ID: "h1", Action: "open_door"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success result")
	}
	if !out.Allowed || out.Result != "training" || out.Phase != "training" {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestCheckpointDeniedIsErrorResult(t *testing.T) {
	s := newTestServer(t)
	recognize(t, s, "w1", "marine_entity")

	result, out, err := s.handleCheckpoint(context.Background(), &mcpsdk.CallToolRequest{}, CheckpointInput{ID: "w1", Action: "swim"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for denied checkpoint")
	}
	if out.Allowed || out.Result != "not_approved" || out.Feedback == "" {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestCheckpointEmptyAction(t *testing.T) {
	s := newTestServer(t)
	recognize(t, s, "h1", "human")

	_, _, err := s.handleCheckpoint(context.Background(), &mcpsdk.CallToolRequest{}, CheckpointInput{ID: "h1"})
	if err == nil {
		t.Fatal("expected error for empty action")
	}
}

func TestAuditFiltersAndCounts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	recognize(t, s, "h1", "human")
	recognize(t, s, "w1", "marine_entity")
	s.handleCheckpoint(ctx, &mcpsdk.CallToolRequest{}, CheckpointInput{ID: "h1", Action: "walk"})
	s.handleCheckpoint(ctx, &mcpsdk.CallToolRequest{}, CheckpointInput{ID: "w1", Action: "swim"})

	_, all, err := s.handleAudit(ctx, &mcpsdk.CallToolRequest{}, AuditInput{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 4 || all.Allowed != 1 || all.Denied != 1 || all.Admin != 2 {
		t.Errorf("unexpected counts %+v", all)
	}

	_, h1, err := s.handleAudit(ctx, &mcpsdk.CallToolRequest{}, AuditInput{ID: "h1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(h1.Entries) != 2 || h1.Entries[1].Result != "training" {
		t.Errorf("unexpected h1 entries %+v", h1.Entries)
	}
}

func TestListSorted(t *testing.T) {
	s := newTestServer(t)
	recognize(t, s, "b", "human")
	recognize(t, s, "a", "kraken")

	_, out, err := s.handleList(context.Background(), &mcpsdk.CallToolRequest{}, ListInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Identities) != 2 || out.Identities[0].ID != "a" || out.Identities[0].QuarantineLevel != 1 {
		t.Errorf("unexpected identities %+v", out.Identities)
	}
}

func TestAuditLogFileWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s, err := New(Config{AuditLogPath: path})
	if err != nil {
		t.Fatal(err)
	}
	recognize(t, s, "h1", "human")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected audit log file: %v", err)
	}
	if r := audit.Verify(path); !r.Valid || r.Lines != 1 {
		t.Errorf("expected valid chain with 1 entry, got %+v", r)
	}
}

func TestPolicyApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("acclimatization_threshold: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := New(Config{PolicyPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Gate().Policy().AcclimatizationThreshold; got != 7 {
		t.Errorf("expected threshold 7, got %d", got)
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)
	if s.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}
