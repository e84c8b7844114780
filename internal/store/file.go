package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ppiankov/pactline/internal/contract"
)

// validID matches alphanumeric, dash, underscore, and dot characters only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateID rejects ids that could cause path traversal.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("contract id must not be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("contract id must not contain '..'")
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("contract id %q contains invalid characters", id)
	}
	return nil
}

// File keeps one JSON document per contract in a directory. Writes go
// through a temp file and rename. Revisions are checked under a process
// lock, so a directory must not be shared between processes.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates a File store backed by dir.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create contract directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// DefaultDir returns the default contract directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pactline-contracts")
	}
	return filepath.Join(home, ".pactline", "contracts")
}

func (s *File) Create(_ context.Context, c contract.Contract) (contract.Contract, error) {
	if err := validateID(c.ID); err != nil {
		return contract.Contract{}, fmt.Errorf("invalid contract id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(c.ID)); err == nil {
		return contract.Contract{}, exists(c.ID)
	}
	c = c.Clone()
	c.Revision = 1
	if err := s.writeAtomic(c); err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

func (s *File) Get(_ context.Context, id string) (contract.Contract, error) {
	if err := validateID(id); err != nil {
		return contract.Contract{}, notFound(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *File) Update(_ context.Context, c contract.Contract, expectedRevision int64) (contract.Contract, error) {
	if err := validateID(c.ID); err != nil {
		return contract.Contract{}, notFound(c.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(c.ID)
	if err != nil {
		return contract.Contract{}, err
	}
	if cur.Revision != expectedRevision {
		return contract.Contract{}, conflict(c.ID, expectedRevision, cur.Revision)
	}
	c = c.Clone()
	c.Revision = expectedRevision + 1
	if err := s.writeAtomic(c); err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

func (s *File) List(_ context.Context, f Filter) ([]contract.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []contract.Contract
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		if f.match(c) {
			out = append(out, c)
		}
	}
	sortContracts(out)
	return out, nil
}

func (s *File) Close() error { return nil }

func (s *File) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *File) read(id string) (contract.Contract, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contract.Contract{}, notFound(id)
		}
		return contract.Contract{}, err
	}
	var c contract.Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return contract.Contract{}, fmt.Errorf("decode contract %s: %w", id, err)
	}
	return c, nil
}

func (s *File) writeAtomic(c contract.Contract) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(c.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
