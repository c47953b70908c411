package stewardgatev1

import (
	"testing"
	"time"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

func TestEncodeDecodeCheckpoint(t *testing.T) {
	in := CheckpointRequest{
		IdentityID: "h1",
		Action:     "open_door",
		Details:    map[string]any{"door": "north", "attempt": 2},
	}

	s, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := s.Fields["identity_id"].GetStringValue(); got != "h1" {
		t.Errorf("expected identity_id field h1, got %q", got)
	}

	var out CheckpointRequest
	if err := Decode(s, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.IdentityID != "h1" || out.Action != "open_door" {
		t.Errorf("unexpected decode %+v", out)
	}
	if out.Details["door"] != "north" || out.Details["attempt"] != float64(2) {
		t.Errorf("unexpected details %v", out.Details)
	}
}

func TestEncodeDecodeEntries(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := AuditLogResponse{Entries: []audit.Entry{
		{ID: "a", Seq: 7, Timestamp: ts, IdentityID: "h1", Action: "checkpoint_training", Result: "training"},
	}}

	s, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out AuditLogResponse
	if err := Decode(s, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out.Entries))
	}
	e := out.Entries[0]
	if e.Seq != 7 || !e.Timestamp.Equal(ts) || e.Result != "training" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestLevelRequestOptional(t *testing.T) {
	s, err := Encode(LevelRequest{ID: "h1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Fields["level"]; ok {
		t.Error("expected nil level to be omitted")
	}

	level := 0
	s, err = Encode(LevelRequest{ID: "h1", Level: &level})
	if err != nil {
		t.Fatal(err)
	}
	var out LevelRequest
	if err := Decode(s, &out); err != nil {
		t.Fatal(err)
	}
	if out.Level == nil || *out.Level != 0 {
		t.Errorf("expected explicit zero level, got %v", out.Level)
	}
}

func TestEncodeNil(t *testing.T) {
	s, err := Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Fields) != 0 {
		t.Errorf("expected empty struct, got %v", s.Fields)
	}
}

func TestDecodeDecision(t *testing.T) {
	s, err := Encode(CheckpointResponse{Decision: model.Decision{
		Allowed: true, Result: model.ResultTraining, Status: model.StatusAcclimatizing, Phase: model.PhaseTraining,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Fields["allowed"].GetBoolValue() {
		t.Error("expected embedded decision fields at the top level")
	}
	var out CheckpointResponse
	if err := Decode(s, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Allowed || out.Result != model.ResultTraining {
		t.Errorf("unexpected decision %+v", out.Decision)
	}
}

func TestFullMethod(t *testing.T) {
	if got := FullMethod(MethodCheckpoint); got != "/stewardgate.v1.GateService/Checkpoint" {
		t.Errorf("unexpected full method %s", got)
	}
}
