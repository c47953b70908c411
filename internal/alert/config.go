package alert

import "github.com/ppiankov/stewardgate/internal/audit"

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"     koanf:"url"`
	Format  string            `yaml:"format"  json:"format"  koanf:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"  koanf:"events"` // results or actions, e.g. ["rate_limited", "acclimatization_escalated"]
	Headers map[string]string `yaml:"headers" json:"headers" koanf:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Seq        uint64 `json:"seq"`
	IdentityID string `json:"identity_id"`
	Action     string `json:"action"`
	Request    string `json:"request,omitempty"`
	Result     string `json:"result,omitempty"`
	Status     string `json:"status,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// EventFromEntry converts an audit entry to its webhook payload.
func EventFromEntry(e audit.Entry) AlertEvent {
	return AlertEvent{
		Timestamp:  e.Timestamp.UTC().Format(audit.TimestampFormat),
		Seq:        e.Seq,
		IdentityID: e.IdentityID,
		Action:     e.Action,
		Request:    e.Request,
		Result:     e.Result,
		Status:     e.Status,
		Feedback:   e.Feedback,
	}
}
