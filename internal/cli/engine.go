package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/pactline/internal/alert"
	"github.com/ppiankov/pactline/internal/audit"
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/config"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/odrl"
	"github.com/ppiankov/pactline/internal/store"
)

// engine is the negotiation service plus the resources it owns.
type engine struct {
	svc         *negotiation.Service
	catalogHash string

	store  store.Store
	log    *audit.Log
	alerts *alert.Dispatcher
}

// openEngine loads the catalog and policies and opens the store, audit log
// and webhooks named by cfg. A broken catalog is fatal.
func openEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	cat, hash, err := catalog.LoadWithHash(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	policies, err := odrl.LoadDir(cfg.PolicyDir)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	e := &engine{
		catalogHash: hash,
		store:       st,
		alerts:      alert.NewDispatcher(cfg.Alerts, logger),
	}
	var rec audit.Recorder
	if cfg.Audit.Path != "" {
		if e.log, err = audit.Open(cfg.Audit.Path); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		rec = e.log
	}

	e.svc, err = negotiation.New(negotiation.Options{
		Catalog:  cat,
		Store:    st,
		Policies: policies,
		Audit:    rec,
		Alerts:   e.alerts,
		Logger:   logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	logger.Info("engine ready",
		"catalog_keys", cat.Len(),
		"catalog_hash", hash,
		"policies", len(policies.List()),
		"store", cfg.Store.Driver,
		"audit", cfg.Audit.Path,
	)
	return e, nil
}

// Close drains pending webhooks and releases the audit log and store.
func (e *engine) Close() error {
	if e.alerts != nil {
		e.alerts.Wait()
	}
	var errs []error
	if e.log != nil {
		errs = append(errs, e.log.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
