package audit

import (
	"maps"
	"time"
)

// TimestampFormat is the layout used when rendering entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one immutable audit record. Every gate call that reaches a
// decision produces exactly one Entry.
type Entry struct {
	ID         string         `json:"id"`
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"ts"`
	IdentityID string         `json:"identity_id"`
	Action     string         `json:"action"`
	Request    string         `json:"request,omitempty"`
	Result     string         `json:"result,omitempty"`
	Status     string         `json:"status,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   string         `json:"prev_hash,omitempty"`
}

// Clone returns a copy of e that shares no mutable state with it.
func (e Entry) Clone() Entry {
	e.Details = maps.Clone(e.Details)
	return e
}
