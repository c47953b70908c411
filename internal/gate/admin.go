package gate

import (
	"fmt"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

// Administrative overrides. Every override on an unknown ID is a silent
// no-op: nothing changes and nothing is audited. The defense hooks at the
// end of the file are audit-only and record for any ID.

// RevokeRecognition forces the identity to denied.
func (g *Gate) RevokeRecognition(id string) error {
	return g.administer(id, model.ActionRecognitionRevoked, func(rec *model.Identity) map[string]any {
		prev := rec.Status
		rec.LeaveAcclimatization(model.StatusDenied)
		return map[string]any{"previous_status": string(prev)}
	})
}

// EscalateQuarantine forces the identity to quarantined at the given level.
// Callers apply the policy's EscalationLevel when the operator gave none.
func (g *Gate) EscalateQuarantine(id string, level int) error {
	if level < 0 {
		return fmt.Errorf("%w: quarantine level %d", ErrInvalidRequest, level)
	}
	return g.administer(id, model.ActionQuarantineEscalated, func(rec *model.Identity) map[string]any {
		rec.LeaveAcclimatization(model.StatusQuarantined)
		rec.QuarantineLevel = level
		return map[string]any{"level": level}
	})
}

// SetDeceptionLevel changes the deception level. Status is untouched.
func (g *Gate) SetDeceptionLevel(id string, level int) error {
	if level < 0 {
		return fmt.Errorf("%w: deception level %d", ErrInvalidRequest, level)
	}
	return g.administer(id, model.ActionDeceptionLevelSet, func(rec *model.Identity) map[string]any {
		rec.DeceptionLevel = level
		return map[string]any{"level": level}
	})
}

// Approve grants full access. This is the only way an identity reaches
// approved; checkpoints never promote anyone.
func (g *Gate) Approve(id string) error {
	return g.administer(id, model.ActionRecognitionApproved, func(rec *model.Identity) map[string]any {
		prev := rec.Status
		rec.LeaveAcclimatization(model.StatusApproved)
		rec.Phase = model.PhaseNone
		now := g.now().UTC()
		rec.LastRecognizedAt = &now
		return map[string]any{"previous_status": string(prev)}
	})
}

// EngageDefenseProtocol records that a defense protocol was triggered
// against id. The record is not changed and id need not be registered.
func (g *Gate) EngageDefenseProtocol(id, protocol string) error {
	if protocol == "" {
		return fmt.Errorf("%w: empty protocol", ErrInvalidRequest)
	}
	return g.hook(id, model.ActionDefenseProtocolEngaged, map[string]any{"protocol": protocol})
}

// DestroyOrDisseminate records the council's verdict on a non-steward.
// Verdict is "destroy" or "disseminate".
func (g *Gate) DestroyOrDisseminate(id, verdict string) error {
	switch verdict {
	case model.VerdictDestroy, model.VerdictDisseminate:
	default:
		return fmt.Errorf("%w: verdict %q", ErrInvalidRequest, verdict)
	}
	return g.hook(id, model.ActionDestroyOrDisseminate, map[string]any{"action": verdict})
}

// hook audits an action without touching state. Status is filled in when
// the identity is known.
func (g *Gate) hook(id, action string, details map[string]any) error {
	if id == "" {
		return ErrInvalidRequest
	}

	unlock := g.locks.Lock(id)
	defer unlock()

	e := audit.Entry{IdentityID: id, Action: action, Details: details}
	if rec := g.record(id); rec != nil {
		e.Status = string(rec.Status)
	}
	g.commit(e)
	g.logger.Warn("defense hook", "identity", id, "action", action)
	return nil
}

func (g *Gate) administer(id, action string, apply func(*model.Identity) map[string]any) error {
	if id == "" {
		return ErrInvalidRequest
	}

	unlock := g.locks.Lock(id)
	defer unlock()

	rec := g.record(id)
	if rec == nil {
		return nil
	}
	details := apply(rec)

	g.commit(audit.Entry{
		IdentityID: id,
		Action:     action,
		Status:     string(rec.Status),
		Details:    details,
	})
	g.logger.Info("administrative override", "identity", id, "action", action, "status", rec.Status)
	return nil
}
