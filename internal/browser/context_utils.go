// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from ctx1 (the session context)
// that is canceled when *either* ctx1 or ctx2 (the operational context) is canceled.
// It inherits values from ctx1. Drivers use it so that CDP connection values from
// the session survive while the caller's step deadline still applies.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }

func (valueOnlyContext) Done() <-chan struct{} { return nil }

func (valueOnlyContext) Err() error { return nil }

// Detach returns a context that inherits values from ctx but is not canceled when ctx is.
// The final diagnostic capture runs on a detached context so it still happens after the
// run deadline has fired.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
