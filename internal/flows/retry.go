package flows

import "context"

// Retry re-runs a storage call once when it fails with a transient error.
// Authentication decisions are never transient, so they are never retried.
type Retry struct {
	Transient func(error) bool
	OnRetry   func(op string, err error)
}

// Do runs fn, and runs it a second time if the first error is transient and ctx is
// still live.
func (r Retry) Do(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || r.Transient == nil || !r.Transient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	if r.OnRetry != nil {
		r.OnRetry(op, err)
	}
	return fn()
}
