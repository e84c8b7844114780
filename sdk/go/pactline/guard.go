package pactline

import "context"

// AccessFunc reads data covered by a contract.
type AccessFunc func(ctx context.Context) (any, error)

type runtimeKey struct{}

// WithRuntime attaches the caller's runtime facts to ctx for Meter.
func WithRuntime(ctx context.Context, rc RuntimeContext) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rc)
}

// RuntimeFrom returns the runtime facts attached by WithRuntime.
func RuntimeFrom(ctx context.Context) RuntimeContext {
	rc, _ := ctx.Value(runtimeKey{}).(RuntimeContext)
	return rc
}

// Meter returns an AccessFunc that records one usage against contractID
// before calling fn. When the contract refuses the access (quota, rate
// limit, missing runtime fact, not active) it returns a *BlockedError
// without calling fn.
func (c *Client) Meter(contractID string, fn AccessFunc) AccessFunc {
	return func(ctx context.Context) (any, error) {
		if _, err := c.svc.RecordUsage(ctx, contractID, RuntimeFrom(ctx)); err != nil {
			return nil, blocked(contractID, err)
		}
		return fn(ctx)
	}
}
