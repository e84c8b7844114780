package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/config"
	"github.com/ppiankov/pactline/internal/httpapi"
	"github.com/ppiankov/pactline/internal/server"
)

var (
	serveGRPCAddr string
	serveHTTPAddr string
	serveNoHTTP   bool
	serveAuditLog string
	serveStore    string
	serveDSN      string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Serve gRPC only")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file (overrides config)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Store driver: memory, file, sqlite or postgres (overrides config)")
	serveCmd.Flags().StringVar(&serveDSN, "dsn", "", "Store DSN (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the negotiation server",
	Long:  "Runs pactline as a contract negotiation server over gRPC (pactline.v1.Negotiation)\nand HTTP (/v1/...). Catalog edits on disk are reported but need a restart.",
	RunE:  runServe,
}

func applyServeFlags(cfg *config.Config) error {
	if serveGRPCAddr != "" {
		cfg.Server.GRPCAddr = serveGRPCAddr
	}
	if serveHTTPAddr != "" {
		cfg.Server.HTTPAddr = serveHTTPAddr
	}
	if serveNoHTTP {
		cfg.Server.HTTPAddr = ""
	}
	if serveAuditLog != "" {
		cfg.Audit.Path = serveAuditLog
	}
	if serveStore != "" {
		cfg.Store.Driver = serveStore
	}
	if serveDSN != "" {
		cfg.Store.DSN = serveDSN
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if cfg.Catalog != "" {
		watcher, err := server.NewCatalogWatcher(cfg.Catalog, eng.catalogHash, logger)
		if err != nil {
			logger.Warn("catalog watch disabled", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	errCh := make(chan error, 2)
	grpcSrv := server.New(server.Config{Addr: cfg.Server.GRPCAddr}, eng.svc, logger)
	go func() {
		errCh <- grpcSrv.Serve()
	}()

	var httpSrv *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpSrv = httpapi.NewServer(cfg.Server.HTTPAddr, httpapi.New(eng.svc, logger))
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	logger.Info("pactline listening", "grpc", cfg.Server.GRPCAddr, "http", cfg.Server.HTTPAddr)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	grpcSrv.Shutdown(shutdownCtx)
	return serveErr
}
