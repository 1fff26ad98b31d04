// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "targetID"
	const value = "tab-1"

	t.Run("InheritsValuesFromSession", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, value)

		combinedCtx, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, value, combinedCtx.Value(key))
		assert.Nil(t, combinedCtx.Err())
	})

	t.Run("CancelledBySession", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combinedCtx, cancelCombined := CombineContext(ctx1, context.Background())
		defer cancelCombined()

		cancel1()
		assert.Eventually(t, func() bool {
			return combinedCtx.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond)
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("CancelledByOperation", func(t *testing.T) {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel2()

		combinedCtx, cancelCombined := CombineContext(context.Background(), ctx2)
		defer cancelCombined()

		<-combinedCtx.Done()
		// The goroutine cancels rather than expiring, so the combined error is Canceled.
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
		assert.ErrorIs(t, ctx2.Err(), context.DeadlineExceeded)
	})

	t.Run("ExplicitCancellation", func(t *testing.T) {
		combinedCtx, cancelCombined := CombineContext(context.Background(), context.Background())
		cancelCombined()
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	const key ctxKey = "targetID"

	t.Run("InheritsValues", func(t *testing.T) {
		detached := Detach(context.WithValue(context.Background(), key, "tab-1"))
		assert.Equal(t, "tab-1", detached.Value(key))
	})

	t.Run("OutlivesExpiredRunDeadline", func(t *testing.T) {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		<-runCtx.Done()

		detached := Detach(runCtx)
		_, ok := detached.Deadline()
		assert.False(t, ok)
		assert.Nil(t, detached.Err())
		assert.Nil(t, detached.Done())

		captureCtx, cancelCapture := context.WithTimeout(detached, time.Second)
		defer cancelCapture()
		require.NoError(t, captureCtx.Err(), "a capture window derived from the detached context must be open")
	})
}

func TestQuery_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultScanLimit, Query{Selector: "button"}.EffectiveLimit())
	assert.Equal(t, 5, Query{Selector: "button", Limit: 5}.EffectiveLimit())
}
