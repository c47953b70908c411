// Package gate implements the acclimation gate: a per-identity admission
// state machine that decides every checkpoint, tracks the trust ramp and
// records exactly one audit entry per decision.
package gate

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/policy"
	"github.com/ppiankov/stewardgate/internal/redact"
)

var (
	// ErrInvalidDescriptor is returned by RequestRecognition for a
	// descriptor without an ID or kind.
	ErrInvalidDescriptor = errors.New("invalid identity descriptor")
	// ErrInvalidRequest is returned for an empty identity ID, an empty
	// checkpoint action or a negative level.
	ErrInvalidRequest = errors.New("invalid request")
)

// Observer receives every audit entry after it has been appended.
// Observers run synchronously while the identity is locked and must not
// call back into the Gate.
type Observer interface {
	Observe(audit.Entry)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(audit.Entry)

// Observe calls f(e).
func (f ObserverFunc) Observe(e audit.Entry) { f(e) }

// Option configures a Gate at creation time.
type Option func(*Gate)

// WithClock replaces time.Now. Used by tests to drive the rate window.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithObserver registers observers, called in registration order.
func WithObserver(obs ...Observer) Option {
	return func(g *Gate) { g.observers = append(g.observers, obs...) }
}

// WithPolicy sets the initial thresholds. Nil keeps the defaults.
func WithPolicy(cfg *policy.Config) Option {
	return func(g *Gate) {
		if cfg != nil {
			c := *cfg
			g.policy.Store(&c)
		}
	}
}

// WithLogger sets the logger used for decision tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithStartSeq continues audit sequence numbers after seq.
func WithStartSeq(seq uint64) Option {
	return func(g *Gate) { g.startSeq = seq }
}

// Gate owns the identity registry and the in-memory audit log.
type Gate struct {
	mu         sync.RWMutex
	identities map[string]*model.Identity

	locks keyedMutex

	// commitMu makes append plus fan-out atomic, so observers see
	// entries in Seq order across identities.
	commitMu  sync.Mutex
	log       *audit.Memory
	startSeq  uint64
	policy    atomic.Pointer[policy.Config]
	now       func() time.Time
	observers []Observer
	logger    *slog.Logger
}

// New creates an empty gate with the default policy.
func New(opts ...Option) *Gate {
	g := &Gate{
		identities: make(map[string]*model.Identity),
		now:        time.Now,
		logger:     slog.Default(),
	}
	g.policy.Store(policy.DefaultConfig())
	for _, opt := range opts {
		opt(g)
	}
	g.log = audit.NewMemory(g.startSeq)
	return g
}

// Policy returns a copy of the active thresholds.
func (g *Gate) Policy() policy.Config {
	return *g.policy.Load()
}

// SetPolicy atomically replaces the thresholds. Decisions already in
// flight finish under the policy they started with.
func (g *Gate) SetPolicy(cfg policy.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.policy.Store(&cfg)
	g.logger.Info("gate policy updated",
		"acclimatization_threshold", cfg.AcclimatizationThreshold,
		"grace_threshold", cfg.GraceThreshold,
		"max_actions", cfg.RateLimit.MaxActions,
		"window", cfg.RateLimit.Window)
	return nil
}

// RequestRecognition registers or re-registers an identity and returns its
// new status. Any existing record for the ID is overwritten with zeroed
// counters.
func (g *Gate) RequestRecognition(d model.Descriptor) (model.Status, error) {
	if d.ID == "" || d.Kind == "" {
		return "", ErrInvalidDescriptor
	}
	d.Kind = model.ParseKind(string(d.Kind))

	unlock := g.locks.Lock(d.ID)
	defer unlock()

	rec := model.NewIdentity(d)
	g.mu.Lock()
	g.identities[d.ID] = &rec
	g.mu.Unlock()

	g.commit(audit.Entry{
		IdentityID: d.ID,
		Action:     model.ActionRecognition,
		Status:     string(rec.Status),
		Details:    map[string]any{"status": string(rec.Status), "kind": string(rec.Kind)},
	})
	return rec.Status, nil
}

// Checkpoint decides one action request and reports whether it is allowed.
func (g *Gate) Checkpoint(id, action string, details map[string]any) (bool, error) {
	d, err := g.Evaluate(id, action, details)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Evaluate decides one action request and returns the full decision.
// Policy denials are reported through the Decision, never as errors.
func (g *Gate) Evaluate(id, action string, details map[string]any) (model.Decision, error) {
	if id == "" || action == "" {
		return model.Decision{}, ErrInvalidRequest
	}

	unlock := g.locks.Lock(id)
	defer unlock()

	cfg := g.policy.Load()
	now := g.now()

	var (
		d           model.Decision
		entryAction string
	)
	rec := g.record(id)
	if rec == nil {
		d = deny(model.ResultUnknownSteward, feedbackUnknown)
		entryAction = model.ActionCheckpointDenied
	} else {
		d, entryAction = decide(rec, action, cfg, now)
		d.Status = rec.Status
		d.Phase = rec.Phase
	}
	if entryAction == "" {
		entryAction = action
	}

	g.commit(audit.Entry{
		IdentityID: id,
		Action:     entryAction,
		Request:    action,
		Result:     string(d.Result),
		Status:     string(d.Status),
		Feedback:   d.Feedback,
		Details:    redact.Details(details, cfg.RedactKeys),
	})

	g.logger.Debug("checkpoint",
		"identity", id, "action", action,
		"allowed", d.Allowed, "result", d.Result)
	return d, nil
}

// AuditLog returns a copy of every entry in insertion order.
func (g *Gate) AuditLog() []audit.Entry {
	return g.log.Entries()
}

// AuditSince returns entries with a sequence number greater than seq.
func (g *Gate) AuditSince(seq uint64) []audit.Entry {
	return g.log.Since(seq)
}

// Lookup returns a copy of the identity record.
func (g *Gate) Lookup(id string) (model.Identity, bool) {
	unlock := g.locks.Lock(id)
	defer unlock()

	rec := g.record(id)
	if rec == nil {
		return model.Identity{}, false
	}
	return rec.Clone(), true
}

// List returns copies of all identity records sorted by ID.
func (g *Gate) List() []model.Identity {
	g.mu.RLock()
	ids := make([]string, 0, len(g.identities))
	for id := range g.identities {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Strings(ids)

	out := make([]model.Identity, 0, len(ids))
	for _, id := range ids {
		if rec, ok := g.Lookup(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Restore seeds the registry from persisted records without auditing.
// Records with an empty ID are skipped.
func (g *Gate) Restore(records []model.Identity) int {
	n := 0
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		rec := r.Clone()
		unlock := g.locks.Lock(rec.ID)
		g.mu.Lock()
		g.identities[rec.ID] = &rec
		g.mu.Unlock()
		unlock()
		n++
	}
	return n
}

func (g *Gate) record(id string) *model.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identities[id]
}

// commit appends the entry and fans it out. Callers hold the identity lock.
func (g *Gate) commit(e audit.Entry) audit.Entry {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	stored := g.log.Append(e, g.now())
	for _, obs := range g.observers {
		obs.Observe(stored.Clone())
	}
	return stored
}
