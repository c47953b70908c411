package council

import "fmt"

// Gate is the part of the acclimation gate a verdict acts on.
type Gate interface {
	Approve(id string) error
	RevokeRecognition(id string) error
}

// Council applies review verdicts to the gate.
type Council struct {
	store *Store
	gate  Gate
}

// New binds a review store to a gate.
func New(store *Store, gate Gate) *Council {
	return &Council{store: store, gate: gate}
}

// Store returns the underlying review store.
func (c *Council) Store() *Store {
	return c.store
}

// Request opens a review for identityID.
func (c *Council) Request(identityID, reason, requester string) (Review, error) {
	return c.store.Request(identityID, reason, requester)
}

// Approve resolves the review as approved and grants the identity full
// access.
func (c *Council) Approve(identityID, resolver string) (Review, error) {
	r, err := c.store.Resolve(identityID, StatusApproved, resolver)
	if err != nil {
		return r, err
	}
	if err := c.gate.Approve(identityID); err != nil {
		return r, fmt.Errorf("apply approval for %s: %w", identityID, err)
	}
	return r, nil
}

// Deny resolves the review as denied and revokes the identity.
func (c *Council) Deny(identityID, resolver string) (Review, error) {
	r, err := c.store.Resolve(identityID, StatusDenied, resolver)
	if err != nil {
		return r, err
	}
	if err := c.gate.RevokeRecognition(identityID); err != nil {
		return r, fmt.Errorf("apply denial for %s: %w", identityID, err)
	}
	return r, nil
}
