// internal/navigation/race.go
package navigation

import (
	"context"
	"errors"
	"fmt"
)

// Waiter blocks until its signal arrives or ctx ends.
type Waiter[T any] func(ctx context.Context) (T, error)

type raceResult[T any] struct {
	index int
	value T
	err   error
}

// FirstOf runs every waiter concurrently and returns the first successful value together
// with the index of the waiter that produced it. The losers are canceled and FirstOf
// returns only after all of them have exited. When every waiter fails the errors are
// joined; when ctx ends first its error is returned.
func FirstOf[T any](ctx context.Context, waiters ...Waiter[T]) (T, int, error) {
	var zero T
	if len(waiters) == 0 {
		return zero, -1, errors.New("no waiters to race")
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult[T], len(waiters))
	for i, w := range waiters {
		go func(i int, w Waiter[T]) {
			v, err := w(raceCtx)
			results <- raceResult[T]{index: i, value: v, err: err}
		}(i, w)
	}

	var (
		winner *raceResult[T]
		errs   []error
	)
	for range waiters {
		r := <-results
		if r.err == nil && winner == nil {
			winner = &r
			cancel()
			continue
		}
		if r.err != nil && winner == nil {
			errs = append(errs, fmt.Errorf("waiter %d: %w", r.index, r.err))
		}
	}

	if winner != nil {
		return winner.value, winner.index, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, -1, err
	}
	return zero, -1, errors.Join(errs...)
}
