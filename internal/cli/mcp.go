package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/config"
	pactmcp "github.com/ppiankov/pactline/internal/mcp"
	"github.com/ppiankov/pactline/internal/model"
)

var mcpParty string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpParty, "party", string(model.Me), "Party the agent negotiates for (Me or Counterparty)")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs pactline as an MCP (Model Context Protocol) server over stdio.\nExposes catalog, validation and contract negotiation tools. Logs go to stderr.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if _, err := model.ParseParty(mcpParty); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := pactmcp.New(pactmcp.Config{Version: version, Party: mcpParty}, eng.svc, logger)
	logger.Info("mcp server listening on stdio", "party", mcpParty, "catalog_hash", eng.catalogHash)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
