package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/stewardgate/internal/model"
)

// ReplayFilter holds filtering criteria for an identity replay.
type ReplayFilter struct {
	IdentityID string    // empty = all identities
	From       time.Time // zero value = no lower bound
	To         time.Time // zero value = no upper bound
}

// ReplaySummary holds decision counts and metadata for a replay.
type ReplaySummary struct {
	Total          int            `json:"total"`
	AllowCount     int            `json:"allow_count"`
	DenyCount      int            `json:"deny_count"`
	AdminCount     int            `json:"admin_count"`
	Escalations    int            `json:"escalations"`
	Results        map[string]int `json:"results"`
	FirstTimestamp time.Time      `json:"first_timestamp"`
	LastTimestamp  time.Time      `json:"last_timestamp"`
	LastStatus     string         `json:"last_status,omitempty"`
}

// ReplayResult holds filtered entries and summary for a replay.
type ReplayResult struct {
	IdentityID string        `json:"identity_id,omitempty"`
	Entries    []Entry       `json:"entries"`
	Summary    ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return Filter(entries, filter), nil
}

// Filter applies a ReplayFilter to entries already in memory.
func Filter(entries []Entry, filter ReplayFilter) *ReplayResult {
	result := &ReplayResult{
		IdentityID: filter.IdentityID,
		Summary:    ReplaySummary{Results: map[string]int{}},
	}
	for _, entry := range entries {
		if filter.IdentityID != "" && entry.IdentityID != filter.IdentityID {
			continue
		}
		if !filter.From.IsZero() && entry.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.Timestamp.After(filter.To) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}
	return result
}

// Outcome classifies a result as "allow", "deny" or "" for administrative
// entries that carry no checkpoint result.
func Outcome(result string) string {
	switch model.Result(result) {
	case model.ResultAllowed, model.ResultTraining, model.ResultGrace:
		return "allow"
	case model.ResultUnknownSteward, model.ResultQuarantined,
		model.ResultRateLimited, model.ResultNotApproved:
		return "deny"
	default:
		return ""
	}
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch Outcome(entry.Result) {
	case "allow":
		s.AllowCount++
	case "deny":
		s.DenyCount++
	default:
		s.AdminCount++
	}
	if entry.Result != "" {
		s.Results[entry.Result]++
	}
	if entry.Action == model.ActionAcclimatizationEscalate || entry.Action == model.ActionQuarantineEscalated {
		s.Escalations++
	}
	if entry.Status != "" {
		s.LastStatus = entry.Status
	}

	if s.FirstTimestamp.IsZero() {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
