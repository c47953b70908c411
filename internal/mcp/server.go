package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/gate"
	"github.com/ppiankov/stewardgate/internal/policy"
)

// Config holds MCP server configuration.
type Config struct {
	PolicyPath   string
	AuditLogPath string
	Version      string
	Logger       *slog.Logger
}

// Server exposes an acclimation gate as MCP tools over stdio.
type Server struct {
	mcpServer  *mcpsdk.Server
	gate       *gate.Gate
	auditLog   *audit.FileLog
	policyHash string
}

// New creates an MCP server with a gate loaded from the policy file.
// When AuditLogPath is set every audit entry is also appended to the
// hash-chained log.
func New(cfg Config) (*Server, error) {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []gate.Option{gate.WithPolicy(policyCfg), gate.WithLogger(logger)}

	var auditLog *audit.FileLog
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		auditLog.SetLogger(logger)
		opts = append(opts, gate.WithObserver(auditLog))
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		gate:       gate.New(opts...),
		auditLog:   auditLog,
		policyHash: policyHash,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "stewardgate",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Gate returns the gate behind the tools.
func (s *Server) Gate() *gate.Gate {
	return s.gate
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// registerTools adds all gate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "steward_recognize",
		Description: "Register an identity with the gate. Humans and automated agents start acclimatizing; marine entities are denied; anything else is quarantined.",
	}, s.handleRecognize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "steward_checkpoint",
		Description: "Ask the gate whether an identity may perform an action. Denied actions return an error result with feedback.",
	}, s.handleCheckpoint)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "steward_audit",
		Description: "Return the audit trail, optionally for a single identity, with allow/deny counts.",
	}, s.handleAudit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "steward_list",
		Description: "List every registered identity with its status, phase and counters.",
	}, s.handleList)
}
