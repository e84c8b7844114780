// Package mcp exposes contract negotiation as MCP tools over stdio, so an
// agent can inspect the catalog, negotiate and meter contracts.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pactline/internal/negotiation"
)

// Config holds MCP server configuration.
type Config struct {
	Version string
	// Party is the side this agent negotiates for. Proposals and signatures
	// default to it.
	Party string
}

// Server wraps the MCP SDK server around a negotiation.Service.
type Server struct {
	mcpServer *mcpsdk.Server
	svc       *negotiation.Service
	logger    *slog.Logger
	cfg       Config
}

// New creates an MCP server with every pactline tool registered.
func New(cfg Config, svc *negotiation.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Party == "" {
		cfg.Party = "Me"
	}
	s := &Server{svc: svc, logger: logger, cfg: cfg}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "pactline",
			Version: cfg.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on the stdio transport. Blocks until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all pactline tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_catalog",
		Description: "List the constraint catalog: every key with its dimension, allowed modes, default mode and value bounds.",
	}, s.handleCatalog)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_validate",
		Description: "Check a single constraint value against the catalog without touching any contract.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_create_contract",
		Description: "Create a Draft contract from explicit terms or from a published policy.",
	}, s.handleCreate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_submit",
		Description: "Submit a Draft contract: version 1 becomes the initial offer and negotiation opens.",
	}, s.handleSubmit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_propose",
		Description: "Propose new terms against the current version. Rejected proposals leave the contract unchanged and return the violated bounds.",
	}, s.handlePropose)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_sign",
		Description: "Accept the other party's latest proposal and sign it. The contract becomes Active and metering starts.",
	}, s.handleSign)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_get_contract",
		Description: "Fetch a contract with its status, current positions and agreement.",
	}, s.handleGet)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_list_contracts",
		Description: "List contracts, optionally filtered by status or product reference.",
	}, s.handleList)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_history",
		Description: "Show the version history of a contract, oldest first.",
	}, s.handleHistory)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_diff",
		Description: "Show which negotiable terms differ between the counterparty's position and ours.",
	}, s.handleDiff)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_record_usage",
		Description: "Meter one access against an Active contract. Fails with quota_exhausted or rate_limited when the agreement is used up.",
	}, s.handleUsage)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pactline_close",
		Description: "Terminate a contract under negotiation, or revoke an Active one.",
	}, s.handleClose)
}
