// Package store persists contracts with optimistic revisions. Every backend
// satisfies the same contract: Create starts at revision 1, Update succeeds
// only when the caller's expected revision is current and bumps it by one.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/model"
)

// Store is a contract repository.
type Store interface {
	Create(ctx context.Context, c contract.Contract) (contract.Contract, error)
	Get(ctx context.Context, id string) (contract.Contract, error)
	Update(ctx context.Context, c contract.Contract, expectedRevision int64) (contract.Contract, error)
	List(ctx context.Context, f Filter) ([]contract.Contract, error)
	Close() error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status     contract.Status
	ProductRef string
}

func (f Filter) match(c contract.Contract) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.ProductRef != "" && c.ProductRef != f.ProductRef {
		return false
	}
	return true
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open returns the backend named by driver. dsn is a directory for file,
// a path or ":memory:" for sqlite, and a connection URL for postgres.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		s, err = NewFile(dsn)
	case BackendSQLite:
		s, err = OpenSQL(ctx, DialectSQLite, dsn)
	case BackendPostgres:
		s, err = OpenSQL(ctx, DialectPostgres, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want memory, file, sqlite or postgres)", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func notFound(id string) error {
	return model.Errorf(model.KindNotFound, "contract %s not found", id)
}

func conflict(id string, expected, actual int64) error {
	return model.Errorf(model.KindVersionConflict,
		"contract %s changed concurrently: expected revision %d, found %d", id, expected, actual)
}

func exists(id string) error {
	return model.Errorf(model.KindVersionConflict, "contract %s already exists", id)
}

func sortContracts(cs []contract.Contract) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
