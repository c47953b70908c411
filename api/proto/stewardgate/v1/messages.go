package stewardgatev1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/council"
	"github.com/ppiankov/stewardgate/internal/model"
)

// Encode converts a JSON-serializable value into a Struct. A nil value
// encodes as an empty Struct.
func Encode(v any) (*structpb.Struct, error) {
	s := new(structpb.Struct)
	if v == nil {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// Decode fills v from a Struct. Unknown fields are ignored.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// RecognitionRequest registers an identity.
type RecognitionRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// RecognitionResponse carries the status assigned at recognition.
type RecognitionResponse struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
}

// CheckpointRequest asks the gate to decide one action.
type CheckpointRequest struct {
	IdentityID string         `json:"identity_id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
}

// CheckpointResponse is the gate decision.
type CheckpointResponse struct {
	model.Decision
}

// AuditLogRequest filters the audit snapshot. Zero values match all.
type AuditLogRequest struct {
	IdentityID string `json:"identity_id,omitempty"`
	SinceSeq   uint64 `json:"since_seq,omitempty"`
}

// AuditLogResponse carries audit entries in sequence order.
type AuditLogResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// IdentityRequest names the identity an administrative RPC acts on.
type IdentityRequest struct {
	ID string `json:"id"`
}

// LevelRequest sets a quarantine or deception level. A nil Level selects
// the server's policy default.
type LevelRequest struct {
	ID    string `json:"id"`
	Level *int   `json:"level,omitempty"`
}

// DefenseRequest engages a named defense protocol against an identity.
type DefenseRequest struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
}

// VerdictRequest records a destroy or disseminate verdict.
type VerdictRequest struct {
	ID      string `json:"id"`
	Verdict string `json:"verdict"`
}

// AdminResponse reports the identity after an administrative RPC.
// Known is false when the ID was not registered and nothing changed.
type AdminResponse struct {
	ID       string          `json:"id"`
	Known    bool            `json:"known"`
	Identity *model.Identity `json:"identity,omitempty"`
}

// ListIdentitiesResponse carries every identity sorted by ID.
type ListIdentitiesResponse struct {
	Identities []model.Identity `json:"identities"`
}

// ReviewRequest opens a council review.
type ReviewRequest struct {
	IdentityID string `json:"identity_id"`
	Reason     string `json:"reason"`
	Requester  string `json:"requester,omitempty"`
}

// ResolveReviewRequest records a council verdict.
type ResolveReviewRequest struct {
	IdentityID string         `json:"identity_id"`
	Verdict    council.Status `json:"verdict"`
	Resolver   string         `json:"resolver,omitempty"`
}

// ReviewResponse carries one review.
type ReviewResponse struct {
	Review council.Review `json:"review"`
}

// ListReviewsRequest filters the review list.
type ListReviewsRequest struct {
	PendingOnly bool `json:"pending_only,omitempty"`
}

// ListReviewsResponse carries reviews sorted by creation time.
type ListReviewsResponse struct {
	Reviews []council.Review `json:"reviews"`
}
