package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/ppiankov/stewardgate/api/proto/stewardgate/v1"
	"github.com/ppiankov/stewardgate/internal/alert"
	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/council"
	"github.com/ppiankov/stewardgate/internal/gate"
	"github.com/ppiankov/stewardgate/internal/model"
	"github.com/ppiankov/stewardgate/internal/policy"
	"github.com/ppiankov/stewardgate/internal/policydiff"
)

// Config holds gRPC server configuration.
type Config struct {
	Port       int
	PolicyPath string
}

// Server implements the GateService gRPC server on top of a Gate.
type Server struct {
	mu         sync.RWMutex
	policyHash string

	gate    *gate.Gate
	council *council.Council
	alerts  *alert.Router
	cfg     Config
	logger  *slog.Logger

	grpcServer *grpc.Server
}

// New creates a gRPC server for g. alerts may be nil when webhooks are
// not wired; council may be nil to disable the review RPCs.
func New(cfg Config, g *gate.Gate, c *council.Council, alerts *alert.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		gate:       g,
		council:    c,
		alerts:     alerts,
		cfg:        cfg,
		logger:     logger,
		grpcServer: grpc.NewServer(grpc.ChainUnaryInterceptor(logInterceptor(logger))),
	}
	pb.RegisterGateServiceServer(s.grpcServer, s)
	return s
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// PolicyHash returns the hash of the policy file currently applied.
func (s *Server) PolicyHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyHash
}

// ReloadPolicy re-reads the policy file, swaps the gate thresholds and
// rebuilds the webhook dispatcher. Called by the hot-reloader on change.
func (s *Server) ReloadPolicy() error {
	cfg, hash, err := policy.LoadConfigWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy config: %w", err)
	}
	prev := s.gate.Policy()
	if err := s.gate.SetPolicy(*cfg); err != nil {
		return fmt.Errorf("failed to apply policy config: %w", err)
	}
	if s.alerts != nil {
		s.alerts.Swap(alert.NewDispatcher(cfg.Alerts, s.logger))
	}

	for _, c := range policydiff.Diff(&prev, cfg).Changes {
		s.logger.Info("policy changed", "field", c.Field, "old", c.Old, "new", c.New, "effect", c.Comment)
	}

	s.mu.Lock()
	s.policyHash = hash
	s.mu.Unlock()
	return nil
}

// SetPolicyHash records the hash of the policy applied at startup.
func (s *Server) SetPolicyHash(hash string) {
	s.mu.Lock()
	s.policyHash = hash
	s.mu.Unlock()
}

// RequestRecognition implements the RequestRecognition RPC.
func (s *Server) RequestRecognition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.RecognitionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	st, err := s.gate.RequestRecognition(model.Descriptor{ID: req.ID, Kind: model.Kind(req.Kind)})
	if err != nil {
		return nil, rpcError(err)
	}
	return encode(pb.RecognitionResponse{ID: req.ID, Status: st})
}

// Checkpoint implements the Checkpoint RPC. Denials are normal replies.
func (s *Server) Checkpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.CheckpointRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	d, err := s.gate.Evaluate(req.IdentityID, req.Action, req.Details)
	if err != nil {
		return nil, rpcError(err)
	}
	return encode(pb.CheckpointResponse{Decision: d})
}

// AuditLog implements the AuditLog RPC.
func (s *Server) AuditLog(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.AuditLogRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return encode(pb.AuditLogResponse{Entries: s.auditEntries(req.IdentityID, req.SinceSeq)})
}

// Revoke implements the Revoke RPC.
func (s *Server) Revoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.IdentityRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.admin(req.ID, s.gate.RevokeRecognition(req.ID))
}

// EscalateQuarantine implements the EscalateQuarantine RPC.
func (s *Server) EscalateQuarantine(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.LevelRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	level := s.gate.Policy().EscalationLevel
	if req.Level != nil {
		level = *req.Level
	}
	return s.admin(req.ID, s.gate.EscalateQuarantine(req.ID, level))
}

// SetDeceptionLevel implements the SetDeceptionLevel RPC.
func (s *Server) SetDeceptionLevel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.LevelRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	level := s.gate.Policy().DeceptionLevel
	if req.Level != nil {
		level = *req.Level
	}
	return s.admin(req.ID, s.gate.SetDeceptionLevel(req.ID, level))
}

// Approve implements the Approve RPC.
func (s *Server) Approve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.IdentityRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.admin(req.ID, s.gate.Approve(req.ID))
}

// EngageDefenseProtocol implements the EngageDefenseProtocol RPC.
func (s *Server) EngageDefenseProtocol(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.DefenseRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.admin(req.ID, s.gate.EngageDefenseProtocol(req.ID, req.Protocol))
}

// DestroyOrDisseminate implements the DestroyOrDisseminate RPC.
func (s *Server) DestroyOrDisseminate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.VerdictRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.admin(req.ID, s.gate.DestroyOrDisseminate(req.ID, req.Verdict))
}

// ListIdentities implements the ListIdentities RPC.
func (s *Server) ListIdentities(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return encode(pb.ListIdentitiesResponse{Identities: s.gate.List()})
}

// RequestReview implements the RequestReview RPC.
func (s *Server) RequestReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.council == nil {
		return nil, status.Error(codes.Unimplemented, "council reviews are disabled")
	}
	var req pb.ReviewRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	r, err := s.council.Request(req.IdentityID, req.Reason, req.Requester)
	if err != nil {
		return nil, rpcError(err)
	}
	return encode(pb.ReviewResponse{Review: r})
}

// ResolveReview implements the ResolveReview RPC.
func (s *Server) ResolveReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.council == nil {
		return nil, status.Error(codes.Unimplemented, "council reviews are disabled")
	}
	var req pb.ResolveReviewRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	var (
		r   council.Review
		err error
	)
	switch req.Verdict {
	case council.StatusApproved:
		r, err = s.council.Approve(req.IdentityID, req.Resolver)
	case council.StatusDenied:
		r, err = s.council.Deny(req.IdentityID, req.Resolver)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "verdict must be %q or %q", council.StatusApproved, council.StatusDenied)
	}
	if err != nil {
		return nil, rpcError(err)
	}
	return encode(pb.ReviewResponse{Review: r})
}

// ListReviews implements the ListReviews RPC.
func (s *Server) ListReviews(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.council == nil {
		return nil, status.Error(codes.Unimplemented, "council reviews are disabled")
	}
	var req pb.ListReviewsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	var (
		reviews []council.Review
		err     error
	)
	if req.PendingOnly {
		reviews, err = s.council.Store().Pending()
	} else {
		reviews, err = s.council.Store().List()
	}
	if err != nil {
		return nil, rpcError(err)
	}
	return encode(pb.ListReviewsResponse{Reviews: reviews})
}

func (s *Server) auditEntries(identityID string, since uint64) []audit.Entry {
	entries := s.gate.AuditSince(since)
	if identityID == "" {
		return entries
	}
	return audit.Filter(entries, audit.ReplayFilter{IdentityID: identityID}).Entries
}

func (s *Server) admin(id string, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, rpcError(err)
	}
	resp := pb.AdminResponse{ID: id}
	if rec, ok := s.gate.Lookup(id); ok {
		resp.Known = true
		resp.Identity = &rec
	}
	return encode(resp)
}

// rpcError maps package sentinel errors to gRPC status codes.
func rpcError(err error) error {
	switch {
	case errors.Is(err, gate.ErrInvalidDescriptor),
		errors.Is(err, gate.ErrInvalidRequest),
		errors.Is(err, council.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, council.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, council.ErrAlreadyResolved):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func decode(in *structpb.Struct, v any) error {
	if err := pb.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := pb.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func logInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Debug("rpc failed", "method", info.FullMethod, "code", status.Code(err).String(), "error", err)
		}
		return resp, err
	}
}
