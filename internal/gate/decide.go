package gate

import (
	"time"

	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/policy"
	"github.com/ppiankov/stewardgate/internal/ratelimit"
)

const (
	feedbackUnknown      = "Unrecognized entity. Please request recognition."
	feedbackTraining     = "You are in training mode. Please follow the guidance provided."
	feedbackGraceEntered = "You are now in a grace period. Please proceed carefully."
	feedbackGrace        = "You are in a grace period. Mistakes are tolerated, but repeated failures will escalate."
	feedbackEscalated    = "You have exceeded the grace period. Escalating to quarantine."
	feedbackQuarantined  = "You are now quarantined. Please contact the council for review."
	feedbackRateLimited  = "You are being rate limited. Please slow down."
	feedbackDeceived     = "You are quarantined. No real actions are allowed."
	feedbackNotApproved  = "You are not yet approved. Please complete acclimatization or contact the council."
	feedbackAllowed      = "Action allowed."
)

// decide evaluates one checkpoint against rec, mutating it in place.
// It returns the decision and the audit action label; an empty label means
// the caller's own action is recorded.
//
// Evaluation order:
//  1. acclimatizing, training: allow below the acclimatization threshold,
//     otherwise enter grace and continue
//  2. acclimatizing, grace: allow below the escalation limit, otherwise
//     escalate to quarantine and deny
//  3. acclimatizing, escalated: deny
//  4. rate limit
//  5. quarantined or unrecognized: deny
//  6. not approved: deny
//  7. approved: allow
func decide(rec *model.Identity, action string, cfg *policy.Config, now time.Time) (model.Decision, string) {
	if rec.Acclimatizing() {
		enteredGrace := false
		if rec.Phase == model.PhaseTraining {
			if rec.FailedAttempts < cfg.AcclimatizationThreshold {
				rec.FailedAttempts++
				return allow(model.ResultTraining, feedbackTraining), model.ActionCheckpointTraining
			}
			rec.Phase = model.PhaseGrace
			enteredGrace = true
		}

		if rec.Phase == model.PhaseGrace {
			rec.FailedAttempts++
			if rec.FailedAttempts <= cfg.EscalationLimit() {
				if enteredGrace {
					return allow(model.ResultGrace, feedbackGraceEntered), model.ActionAcclimatizationGrace
				}
				return allow(model.ResultGrace, feedbackGrace), model.ActionCheckpointGrace
			}
			rec.Status = model.StatusQuarantined
			rec.Phase = model.PhaseEscalated
			return deny(model.ResultQuarantined, feedbackEscalated), model.ActionAcclimatizationEscalate
		}

		if rec.Phase == model.PhaseEscalated {
			return deny(model.ResultQuarantined, feedbackQuarantined), model.ActionCheckpointQuarantined
		}
	}

	if r := ratelimit.Observe(&rec.RateWindow, cfg.RateLimit, now); r.Exceeded {
		return deny(model.ResultRateLimited, feedbackRateLimited), model.ActionCheckpointDenied
	}

	if rec.Status == model.StatusQuarantined || rec.Kind == model.KindUnrecognized {
		return deny(model.ResultQuarantined, feedbackDeceived), model.ActionCheckpointQuarantined
	}

	if rec.Status != model.StatusApproved {
		rec.FailedAttempts++
		return deny(model.ResultNotApproved, feedbackNotApproved), model.ActionCheckpointDenied
	}

	return allow(model.ResultAllowed, feedbackAllowed), ""
}

func allow(r model.Result, feedback string) model.Decision {
	return model.Decision{Allowed: true, Result: r, Feedback: feedback}
}

func deny(r model.Result, feedback string) model.Decision {
	return model.Decision{Result: r, Feedback: feedback}
}
