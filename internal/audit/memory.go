package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the append-only, in-process audit log the gate owns.
// Sequence numbers are assigned in append order, so the log order is the
// order decisions were committed.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
}

// NewMemory creates an empty log. Appends continue after startSeq, which
// lets a restarted daemon keep sequence numbers monotonic.
func NewMemory(startSeq uint64) *Memory {
	return &Memory{seq: startSeq}
}

// Append stamps the entry with an ID, the next sequence number and a
// timestamp (if unset) and stores a private copy. It returns the stored
// entry.
func (m *Memory) Append(e Entry, now time.Time) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	e = e.Clone()
	e.Seq = m.seq
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	m.entries = append(m.entries, e)
	return e.Clone()
}

// Entries returns a snapshot of all entries in insertion order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Clone()
	}
	return out
}

// Since returns entries with Seq greater than seq.
func (m *Memory) Since(seq uint64) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Seq > seq {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
