package alert

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/stewardgate/internal/model"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("stewardgate: %s", headline(event)),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Identity:* %s", event.IdentityID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Action:* %s", event.Action)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s", event.Status)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Feedback:* %s", event.Feedback)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("stewardgate %s: %s", headline(event), event.IdentityID),
			"severity": severityFor(event),
			"source":   "stewardgate",
			"custom_details": map[string]any{
				"identity_id": event.IdentityID,
				"action":      event.Action,
				"request":     event.Request,
				"status":      event.Status,
				"feedback":    event.Feedback,
				"seq":         event.Seq,
			},
		},
	}
	return json.Marshal(payload)
}

func headline(event AlertEvent) string {
	if event.Result != "" {
		return event.Result
	}
	return event.Action
}

func severityFor(event AlertEvent) string {
	switch {
	case event.Action == model.ActionAcclimatizationEscalate,
		event.Action == model.ActionQuarantineEscalated,
		event.Action == model.ActionDefenseProtocolEngaged,
		event.Action == model.ActionDestroyOrDisseminate:
		return "critical"
	case event.Result == string(model.ResultQuarantined):
		return "error"
	case event.Result == string(model.ResultRateLimited),
		event.Result == string(model.ResultNotApproved),
		event.Result == string(model.ResultUnknownSteward):
		return "warning"
	default:
		return "info"
	}
}
