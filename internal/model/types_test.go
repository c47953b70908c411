package model

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"human", KindHuman},
		{"automated_agent", KindAgent},
		{"agent", KindAgent},
		{"ai", KindAgent},
		{"automated-agent", KindAgent},
		{"marine_entity", KindMarineEntity},
		{"whale", KindMarineEntity},
		{"marine-entity", KindMarineEntity},
		{"non-steward", KindUnrecognized},
		{"unrecognized", KindUnrecognized},
		{"HUMAN", KindUnrecognized},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewIdentityPerKind(t *testing.T) {
	tests := []struct {
		kind       Kind
		status     Status
		phase      Phase
		quarantine int
		deception  int
	}{
		{KindHuman, StatusAcclimatizing, PhaseTraining, 0, 0},
		{KindAgent, StatusAcclimatizing, PhaseTraining, 0, 0},
		{KindMarineEntity, StatusDenied, PhaseNone, 0, 0},
		{KindUnrecognized, StatusQuarantined, PhaseNone, 1, 1},
		{Kind("kraken"), StatusQuarantined, PhaseNone, 1, 1},
	}
	for _, tt := range tests {
		id := NewIdentity(Descriptor{ID: "x", Kind: tt.kind})
		if id.Status != tt.status || id.Phase != tt.phase {
			t.Errorf("%s: expected %s/%s, got %s/%s", tt.kind, tt.status, tt.phase, id.Status, id.Phase)
		}
		if id.QuarantineLevel != tt.quarantine || id.DeceptionLevel != tt.deception {
			t.Errorf("%s: expected levels %d/%d, got %d/%d",
				tt.kind, tt.quarantine, tt.deception, id.QuarantineLevel, id.DeceptionLevel)
		}
		if id.FailedAttempts != 0 || id.RateWindow.Count != 0 || id.LastRecognizedAt != nil {
			t.Errorf("%s: expected zeroed counters, got %+v", tt.kind, id)
		}
	}
}

func TestNewIdentityNormalizesUnknownKind(t *testing.T) {
	id := NewIdentity(Descriptor{ID: "x", Kind: "kraken"})
	if id.Kind != KindUnrecognized {
		t.Errorf("expected kind unrecognized, got %s", id.Kind)
	}
}

func TestLeaveAcclimatizationClearsRampPhase(t *testing.T) {
	id := NewIdentity(Descriptor{ID: "h1", Kind: KindHuman})
	id.Phase = PhaseGrace

	id.LeaveAcclimatization(StatusDenied)
	if id.Status != StatusDenied {
		t.Errorf("expected denied, got %s", id.Status)
	}
	if id.Phase != PhaseNone {
		t.Errorf("expected phase none, got %s", id.Phase)
	}
}

func TestLeaveAcclimatizationKeepsEscalatedWhileQuarantined(t *testing.T) {
	id := Identity{ID: "h1", Status: StatusQuarantined, Phase: PhaseEscalated}

	id.LeaveAcclimatization(StatusQuarantined)
	if id.Phase != PhaseEscalated {
		t.Errorf("expected escalated marker kept, got %s", id.Phase)
	}

	id.LeaveAcclimatization(StatusDenied)
	if id.Phase != PhaseNone {
		t.Errorf("expected escalated marker cleared on denied, got %s", id.Phase)
	}
}

func TestIdentityCloneCopiesTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := Identity{ID: "h1", LastRecognizedAt: &ts}

	c := id.Clone()
	*c.LastRecognizedAt = ts.Add(time.Hour)
	if !id.LastRecognizedAt.Equal(ts) {
		t.Error("expected clone not to share LastRecognizedAt")
	}
}
