package odrl

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/pactline/internal/model"
)

// Registry holds published policies by uid.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Put stores a published policy. Re-publishing a uid with different
// content is refused.
func (r *Registry) Put(p Policy) error {
	if !p.Published() {
		return model.Errorf(model.KindIllegalTransition, "policy %s is not published", p.UID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.policies[p.UID]; ok {
		a, _ := Marshal(existing)
		b, _ := Marshal(p)
		if string(a) != string(b) {
			return model.Errorf(model.KindIllegalTransition, "policy %s is already published with different content", p.UID)
		}
		return nil
	}
	r.policies[p.UID] = p.Clone()
	return nil
}

// Get returns the policy with uid.
func (r *Registry) Get(uid string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[uid]
	if !ok {
		return Policy{}, model.Errorf(model.KindNotFound, "policy %s not found", uid)
	}
	return p.Clone(), nil
}

// List returns every policy ordered by uid.
func (r *Registry) List() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Resolve picks the Active policy governing target. A permission with no
// target covers everything; otherwise its target is a path.Match pattern.
// Higher priority wins, then the most recent createdAt, then the greatest uid.
func (r *Registry) Resolve(target string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []Policy
	for _, p := range r.policies {
		if p.Status == StatusActive && covers(p, target) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Policy{}, model.Errorf(model.KindNotFound, "no active policy covers %q", target)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return outranks(candidates[i], candidates[j])
	})
	return candidates[0].Clone(), nil
}

func outranks(a, b Policy) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.UID > b.UID
}

func covers(p Policy, target string) bool {
	for _, perm := range p.Permission {
		if perm.Target == "" || perm.Target == target {
			return true
		}
		if ok, err := path.Match(perm.Target, target); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadDir parses every *.json policy in dir into a new registry. A missing
// directory yields an empty registry.
func LoadDir(dir string) (*Registry, error) {
	r := NewRegistry()
	if dir == "" {
		return r, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read policies dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read policy %s: %w", e.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", e.Name(), err)
		}
		if err := r.Put(p); err != nil {
			return nil, fmt.Errorf("policy %s: %w", e.Name(), err)
		}
	}
	return r, nil
}
