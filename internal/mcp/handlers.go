package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

// --- Input/Output types ---

// RecognizeInput defines parameters for the steward_recognize tool.
type RecognizeInput struct {
	ID   string `json:"id" jsonschema:"unique identity id"`
	Kind string `json:"kind" jsonschema:"identity kind (human/automated_agent/marine_entity)"`
}

// RecognizeOutput carries the assigned status.
type RecognizeOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CheckpointInput defines parameters for the steward_checkpoint tool.
type CheckpointInput struct {
	ID      string         `json:"id" jsonschema:"identity id"`
	Action  string         `json:"action" jsonschema:"action being requested"`
	Details map[string]any `json:"details,omitempty" jsonschema:"free-form context recorded in the audit entry"`
}

// CheckpointOutput contains the gate decision.
type CheckpointOutput struct {
	Allowed  bool   `json:"allowed"`
	Result   string `json:"result"`
	Feedback string `json:"feedback"`
	Status   string `json:"status,omitempty"`
	Phase    string `json:"phase,omitempty"`
}

// AuditInput defines parameters for the steward_audit tool.
type AuditInput struct {
	ID string `json:"id,omitempty" jsonschema:"identity id, omit for all identities"`
}

// AuditOutput lists entries with allow/deny counts.
type AuditOutput struct {
	Entries []AuditItem `json:"entries"`
	Total   int         `json:"total"`
	Allowed int         `json:"allowed"`
	Denied  int         `json:"denied"`
	Admin   int         `json:"admin"`
}

// AuditItem is one audit entry rendered for tool output.
type AuditItem struct {
	Seq        uint64 `json:"seq"`
	Timestamp  string `json:"ts"`
	IdentityID string `json:"identity_id"`
	Action     string `json:"action"`
	Result     string `json:"result,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// ListInput is empty: no parameters needed.
type ListInput struct{}

// ListOutput lists identities.
type ListOutput struct {
	Identities []IdentityItem `json:"identities"`
}

// IdentityItem is one identity rendered for tool output.
type IdentityItem struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	Phase           string `json:"phase"`
	QuarantineLevel int    `json:"quarantine_level"`
	DeceptionLevel  int    `json:"deception_level"`
	FailedAttempts  int    `json:"failed_attempts"`
}

// --- Handlers ---

func (s *Server) handleRecognize(ctx context.Context, req *mcpsdk.CallToolRequest, input RecognizeInput) (*mcpsdk.CallToolResult, RecognizeOutput, error) {
	st, err := s.gate.RequestRecognition(model.Descriptor{ID: input.ID, Kind: model.Kind(input.Kind)})
	if err != nil {
		return nil, RecognizeOutput{}, err
	}
	return nil, RecognizeOutput{ID: input.ID, Status: string(st)}, nil
}

func (s *Server) handleCheckpoint(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckpointInput) (*mcpsdk.CallToolResult, CheckpointOutput, error) {
	d, err := s.gate.Evaluate(input.ID, input.Action, input.Details)
	if err != nil {
		return nil, CheckpointOutput{}, err
	}

	out := CheckpointOutput{
		Allowed:  d.Allowed,
		Result:   string(d.Result),
		Feedback: d.Feedback,
		Status:   string(d.Status),
		Phase:    string(d.Phase),
	}
	if !d.Allowed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAudit(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditInput) (*mcpsdk.CallToolResult, AuditOutput, error) {
	result := audit.Filter(s.gate.AuditLog(), audit.ReplayFilter{IdentityID: input.ID})

	items := make([]AuditItem, len(result.Entries))
	for i, e := range result.Entries {
		items[i] = AuditItem{
			Seq:        e.Seq,
			Timestamp:  e.Timestamp.UTC().Format(audit.TimestampFormat),
			IdentityID: e.IdentityID,
			Action:     e.Action,
			Result:     e.Result,
			Feedback:   e.Feedback,
		}
	}
	sum := result.Summary
	return nil, AuditOutput{
		Entries: items,
		Total:   sum.Total,
		Allowed: sum.AllowCount,
		Denied:  sum.DenyCount,
		Admin:   sum.AdminCount,
	}, nil
}

func (s *Server) handleList(ctx context.Context, req *mcpsdk.CallToolRequest, input ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	ids := s.gate.List()
	items := make([]IdentityItem, len(ids))
	for i, id := range ids {
		items[i] = IdentityItem{
			ID:              id.ID,
			Kind:            string(id.Kind),
			Status:          string(id.Status),
			Phase:           string(id.Phase),
			QuarantineLevel: id.QuarantineLevel,
			DeceptionLevel:  id.DeceptionLevel,
			FailedAttempts:  id.FailedAttempts,
		}
	}
	return nil, ListOutput{Identities: items}, nil
}
