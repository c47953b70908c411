package audit

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryAssignsSequenceInOrder(t *testing.T) {
	m := NewMemory(0)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := m.Append(Entry{IdentityID: "h1", Action: "recognition"}, now)
		if e.Seq != uint64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, e.Seq)
		}
		if e.ID == "" {
			t.Error("expected entry ID to be generated")
		}
		if !e.Timestamp.Equal(now) {
			t.Errorf("expected timestamp %v, got %v", now, e.Timestamp)
		}
	}
	if m.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", m.Len())
	}
}

func TestMemoryStartSeq(t *testing.T) {
	m := NewMemory(41)
	e := m.Append(Entry{IdentityID: "h1"}, time.Now())
	if e.Seq != 42 {
		t.Errorf("expected seq 42, got %d", e.Seq)
	}
}

func TestMemoryEntriesIsSnapshot(t *testing.T) {
	m := NewMemory(0)
	details := map[string]any{"zone": "reef"}
	m.Append(Entry{IdentityID: "h1", Details: details}, time.Now())

	// Mutating the caller's map after append must not leak in
	details["zone"] = "trench"

	snap := m.Entries()
	if snap[0].Details["zone"] != "reef" {
		t.Errorf("expected stored details to be copied, got %v", snap[0].Details["zone"])
	}

	// Mutating the snapshot must not leak back
	snap[0].Action = "tampered"
	snap[0].Details["zone"] = "abyss"
	again := m.Entries()
	if again[0].Action == "tampered" || again[0].Details["zone"] != "reef" {
		t.Error("expected snapshot mutation not to affect stored entries")
	}
}

func TestMemorySince(t *testing.T) {
	m := NewMemory(0)
	for i := 0; i < 5; i++ {
		m.Append(Entry{IdentityID: "h1"}, time.Now())
	}
	got := m.Since(3)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after seq 3, got %d", len(got))
	}
	if got[0].Seq != 4 || got[1].Seq != 5 {
		t.Errorf("expected seqs 4,5, got %d,%d", got[0].Seq, got[1].Seq)
	}
}

func TestMemoryConcurrentAppendsAreUnique(t *testing.T) {
	m := NewMemory(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Append(Entry{IdentityID: "h1"}, time.Now())
		}()
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for i, e := range m.Entries() {
		if seen[e.Seq] {
			t.Fatalf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
		if e.Seq != uint64(i+1) {
			t.Errorf("expected insertion order seq %d at %d, got %d", i+1, i, e.Seq)
		}
	}
}
