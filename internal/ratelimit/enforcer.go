package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/pactline/internal/model"
)

type bucket struct {
	freq    Frequency
	limiter *rate.Limiter
}

// Registry holds one token bucket per contract. Buckets start full, so a
// contract may burst up to its full count before being throttled.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*bucket)}
}

// Allow takes one token for contractID at now. A zero frequency always
// passes. An empty bucket returns RateLimited.
func (r *Registry) Allow(contractID string, f Frequency, now time.Time) error {
	_, err := r.Reserve(contractID, f, now)
	return err
}

// Reserve takes one token like Allow and returns a release func that puts
// the token back, for callers whose own write fails after the check.
func (r *Registry) Reserve(contractID string, f Frequency, now time.Time) (release func(), err error) {
	if f.IsZero() {
		return func() {}, nil
	}
	r.mu.Lock()
	b, ok := r.buckets[contractID]
	if !ok || b.freq != f {
		b = &bucket{
			freq:    f,
			limiter: rate.NewLimiter(rate.Every(f.Per/time.Duration(f.Count)), f.Count),
		}
		r.buckets[contractID] = b
	}
	r.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		return nil, model.Errorf(model.KindRateLimited, "rate limit exceeded: %s", f)
	}
	return func() { res.CancelAt(now) }, nil
}

// Forget drops the bucket of a closed contract.
func (r *Registry) Forget(contractID string) {
	r.mu.Lock()
	delete(r.buckets, contractID)
	r.mu.Unlock()
}

// Len returns the number of tracked contracts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
