// Package council keeps review requests for identities awaiting a human
// decision and applies that decision to the gate.
package council

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrAlreadyResolved = errors.New("review already resolved")
	ErrInvalidID       = errors.New("invalid identity id")
)

// validID matches alphanumeric, dash, underscore, colon and dot only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// validateID rejects identity IDs that could escape the store directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidID)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: must not contain '..'", ErrInvalidID)
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: only alphanumeric, dash, underscore, colon and dot are allowed", ErrInvalidID)
	}
	return nil
}

// Status is the state of a review request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Review is one request for the council to decide an identity's fate.
type Review struct {
	IdentityID string     `json:"identity_id"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason"`
	Requester  string     `json:"requester,omitempty"`
	Resolver   string     `json:"resolver,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Store manages review files on disk, one JSON file per identity.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create council directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// DefaultDir returns ~/.stewardgate/council.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "stewardgate-council")
	}
	return filepath.Join(home, ".stewardgate", "council")
}

// Request opens a pending review. A pending review for the same identity
// is left as is; a resolved one is reopened.
func (s *Store) Request(identityID, reason, requester string) (Review, error) {
	if err := validateID(identityID); err != nil {
		return Review{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, err := s.read(identityID); err == nil && r.Status == StatusPending {
		return *r, nil
	}

	r := Review{
		IdentityID: identityID,
		Status:     StatusPending,
		Reason:     reason,
		Requester:  requester,
		CreatedAt:  s.now().UTC(),
	}
	return r, s.writeAtomic(s.path(identityID), r)
}

// Resolve records the council's verdict on a pending review.
func (s *Store) Resolve(identityID string, verdict Status, resolver string) (Review, error) {
	if err := validateID(identityID); err != nil {
		return Review{}, err
	}
	if verdict != StatusApproved && verdict != StatusDenied {
		return Review{}, fmt.Errorf("invalid verdict %q", verdict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(identityID)
	if err != nil {
		return Review{}, fmt.Errorf("%w: %s", ErrNotFound, identityID)
	}
	if r.Status != StatusPending {
		return *r, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, identityID, r.Status)
	}

	r.Status = verdict
	r.Resolver = resolver
	now := s.now().UTC()
	r.ResolvedAt = &now
	return *r, s.writeAtomic(s.path(identityID), *r)
}

// Check returns the current status of the review for identityID.
func (s *Store) Check(identityID string) (Status, error) {
	if err := validateID(identityID); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(identityID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, identityID)
	}
	return r.Status, nil
}

// List returns all reviews ordered by creation time.
func (s *Store) List() ([]Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var reviews []Review
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		reviews = append(reviews, *r)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
	})
	return reviews, nil
}

// Pending returns reviews still awaiting a verdict.
func (s *Store) Pending() ([]Review, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Review
	for _, r := range all {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) path(identityID string) string {
	return filepath.Join(s.dir, identityID+".json")
}

func (s *Store) read(identityID string) (*Review, error) {
	data, err := os.ReadFile(s.path(identityID))
	if err != nil {
		return nil, err
	}
	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) writeAtomic(path string, r Review) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
