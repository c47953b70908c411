package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/ppiankov/stewardgate/api/proto/stewardgate/v1"
	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/council"
	"github.com/ppiankov/stewardgate/internal/model"
)

// callTimeout bounds every RPC.
const callTimeout = 5 * time.Second

// Client connects to a stewardgate gRPC server.
type Client struct {
	conn   *grpc.ClientConn
	client *pb.GateServiceClient
}

// New creates a gRPC client connected to the given address.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gate server: %w", err)
	}
	return &Client{
		conn:   conn,
		client: pb.NewGateServiceClient(conn),
	}, nil
}

func (c *Client) call(method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return c.client.Call(ctx, method, req, resp)
}

// RequestRecognition registers an identity and returns its status.
func (c *Client) RequestRecognition(d model.Descriptor) (model.Status, error) {
	var resp pb.RecognitionResponse
	if err := c.call(pb.MethodRequestRecognition, pb.RecognitionRequest{ID: d.ID, Kind: string(d.Kind)}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Evaluate asks the remote gate to decide one action.
// Fail-closed: an unreachable server yields a denial with the RPC error.
func (c *Client) Evaluate(id, action string, details map[string]any) (model.Decision, error) {
	var resp pb.CheckpointResponse
	err := c.call(pb.MethodCheckpoint, pb.CheckpointRequest{IdentityID: id, Action: action, Details: details}, &resp)
	if err != nil {
		return model.Decision{Allowed: false, Feedback: fmt.Sprintf("gate server unreachable: %v", err)}, err
	}
	return resp.Decision, nil
}

// Checkpoint reports whether the remote gate allows the action.
func (c *Client) Checkpoint(id, action string, details map[string]any) (bool, error) {
	d, err := c.Evaluate(id, action, details)
	return d.Allowed, err
}

// AuditLog returns entries after sinceSeq, optionally for one identity.
func (c *Client) AuditLog(identityID string, sinceSeq uint64) ([]audit.Entry, error) {
	var resp pb.AuditLogResponse
	if err := c.call(pb.MethodAuditLog, pb.AuditLogRequest{IdentityID: identityID, SinceSeq: sinceSeq}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Revoke denies a recognized identity.
func (c *Client) Revoke(id string) (pb.AdminResponse, error) {
	return c.admin(pb.MethodRevoke, pb.IdentityRequest{ID: id})
}

// EscalateQuarantine quarantines id. A nil level selects the server default.
func (c *Client) EscalateQuarantine(id string, level *int) (pb.AdminResponse, error) {
	return c.admin(pb.MethodEscalateQuarantine, pb.LevelRequest{ID: id, Level: level})
}

// SetDeceptionLevel sets the deception level. A nil level selects the
// server default.
func (c *Client) SetDeceptionLevel(id string, level *int) (pb.AdminResponse, error) {
	return c.admin(pb.MethodSetDeceptionLevel, pb.LevelRequest{ID: id, Level: level})
}

// Approve grants id full access.
func (c *Client) Approve(id string) (pb.AdminResponse, error) {
	return c.admin(pb.MethodApprove, pb.IdentityRequest{ID: id})
}

// EngageDefenseProtocol records a defense protocol against id.
func (c *Client) EngageDefenseProtocol(id, protocol string) (pb.AdminResponse, error) {
	return c.admin(pb.MethodEngageDefenseProtocol, pb.DefenseRequest{ID: id, Protocol: protocol})
}

// DestroyOrDisseminate records a destroy or disseminate verdict against id.
func (c *Client) DestroyOrDisseminate(id, verdict string) (pb.AdminResponse, error) {
	return c.admin(pb.MethodDestroyOrDisseminate, pb.VerdictRequest{ID: id, Verdict: verdict})
}

func (c *Client) admin(method string, req any) (pb.AdminResponse, error) {
	var resp pb.AdminResponse
	err := c.call(method, req, &resp)
	return resp, err
}

// ListIdentities returns every identity sorted by ID.
func (c *Client) ListIdentities() ([]model.Identity, error) {
	var resp pb.ListIdentitiesResponse
	if err := c.call(pb.MethodListIdentities, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Identities, nil
}

// RequestReview opens a council review for id.
func (c *Client) RequestReview(id, reason, requester string) (council.Review, error) {
	var resp pb.ReviewResponse
	err := c.call(pb.MethodRequestReview, pb.ReviewRequest{IdentityID: id, Reason: reason, Requester: requester}, &resp)
	return resp.Review, err
}

// ResolveReview records a council verdict for id.
func (c *Client) ResolveReview(id string, verdict council.Status, resolver string) (council.Review, error) {
	var resp pb.ReviewResponse
	err := c.call(pb.MethodResolveReview, pb.ResolveReviewRequest{IdentityID: id, Verdict: verdict, Resolver: resolver}, &resp)
	return resp.Review, err
}

// ListReviews returns council reviews, optionally only pending ones.
func (c *Client) ListReviews(pendingOnly bool) ([]council.Review, error) {
	var resp pb.ListReviewsResponse
	if err := c.call(pb.MethodListReviews, pb.ListReviewsRequest{PendingOnly: pendingOnly}, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
