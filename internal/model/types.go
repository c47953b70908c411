package model

import (
	"time"

	"github.com/ppiankov/stewardgate/internal/ratelimit"
)

// Kind is the category an identity is recognized as.
type Kind string

const (
	KindHuman        Kind = "human"
	KindAgent        Kind = "automated_agent"
	KindMarineEntity Kind = "marine_entity"
	KindUnrecognized Kind = "unrecognized"
)

// ParseKind maps a string to a Kind. Fail-closed: anything unknown is
// KindUnrecognized.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindHuman, KindAgent, KindMarineEntity:
		return Kind(s)
	case "automated-agent", "agent", "ai":
		return KindAgent
	case "marine-entity", "whale":
		return KindMarineEntity
	default:
		return KindUnrecognized
	}
}

// Status is the admission status of an identity.
type Status string

const (
	StatusAcclimatizing Status = "acclimatizing"
	StatusQuarantined   Status = "quarantined"
	StatusDenied        Status = "denied"
	StatusApproved      Status = "approved"
)

// Phase is the acclimatization sub-state. Training and grace only occur
// while Status is acclimatizing; escalated is kept after the ramp has
// forced quarantine.
type Phase string

const (
	PhaseNone      Phase = "none"
	PhaseTraining  Phase = "training"
	PhaseGrace     Phase = "grace"
	PhaseEscalated Phase = "escalated"
)

// Result is the outcome discriminator recorded on every audit entry.
type Result string

const (
	ResultUnknownSteward Result = "unknown_steward"
	ResultTraining       Result = "training"
	ResultGrace          Result = "grace"
	ResultQuarantined    Result = "quarantined"
	ResultRateLimited    Result = "rate_limited"
	ResultNotApproved    Result = "not_approved"
	ResultAllowed        Result = "allowed"
)

// Audit action labels written by the gate itself.
const (
	ActionRecognition             = "recognition"
	ActionCheckpointDenied        = "checkpoint_denied"
	ActionCheckpointTraining      = "checkpoint_training"
	ActionCheckpointGrace         = "checkpoint_grace"
	ActionCheckpointQuarantined   = "checkpoint_quarantined"
	ActionAcclimatizationGrace    = "acclimatization_grace"
	ActionAcclimatizationEscalate = "acclimatization_escalated"
	ActionRecognitionRevoked      = "recognition_revoked"
	ActionRecognitionApproved     = "recognition_approved"
	ActionQuarantineEscalated     = "quarantine_escalated"
	ActionDeceptionLevelSet       = "deception_level_set"
	ActionDefenseProtocolEngaged  = "defense_protocol_engaged"
	ActionDestroyOrDisseminate    = "destroy_or_disseminate"
)

// Verdicts accepted by DestroyOrDisseminate.
const (
	VerdictDestroy     = "destroy"
	VerdictDisseminate = "disseminate"
)

// Descriptor is the candidate identity passed to RequestRecognition.
type Descriptor struct {
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Identity is the stored admission record for one actor.
type Identity struct {
	ID               string           `json:"id"`
	Kind             Kind             `json:"kind"`
	Status           Status           `json:"status"`
	Phase            Phase            `json:"phase"`
	QuarantineLevel  int              `json:"quarantine_level"`
	DeceptionLevel   int              `json:"deception_level"`
	FailedAttempts   int              `json:"failed_attempts"`
	RateWindow       ratelimit.Window `json:"rate_window"`
	LastRecognizedAt *time.Time       `json:"last_recognized_at,omitempty"`
}

// NewIdentity builds a freshly recognized record for the descriptor.
// Counters start at zero and LastRecognizedAt is nil.
func NewIdentity(d Descriptor) Identity {
	id := Identity{
		ID:    d.ID,
		Kind:  d.Kind,
		Phase: PhaseNone,
	}
	switch d.Kind {
	case KindHuman, KindAgent:
		id.Status = StatusAcclimatizing
		id.Phase = PhaseTraining
	case KindMarineEntity:
		id.Status = StatusDenied
	default:
		id.Kind = KindUnrecognized
		id.Status = StatusQuarantined
		id.QuarantineLevel = 1
		id.DeceptionLevel = 1
	}
	return id
}

// Acclimatizing reports whether the identity is still on the trust ramp.
func (i *Identity) Acclimatizing() bool {
	return i.Status == StatusAcclimatizing
}

// LeaveAcclimatization moves the identity to a non-acclimatizing status.
// Training and grace are cleared so the phase invariant holds. The
// escalated marker survives only while the identity stays quarantined.
func (i *Identity) LeaveAcclimatization(s Status) {
	i.Status = s
	switch i.Phase {
	case PhaseTraining, PhaseGrace:
		i.Phase = PhaseNone
	case PhaseEscalated:
		if s != StatusQuarantined {
			i.Phase = PhaseNone
		}
	}
}

// Clone returns a copy that shares no pointers with i.
func (i Identity) Clone() Identity {
	if i.LastRecognizedAt != nil {
		t := *i.LastRecognizedAt
		i.LastRecognizedAt = &t
	}
	return i
}

// Decision is the outcome of one checkpoint evaluation.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Result   Result `json:"result"`
	Feedback string `json:"feedback"`
	Status   Status `json:"status,omitempty"`
	Phase    Phase  `json:"phase,omitempty"`
}
