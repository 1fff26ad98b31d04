// internal/locator/resolver.go
package locator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

const defaultPollInterval = 100 * time.Millisecond

// Result is the outcome of a resolution. Element is only meaningful for the current
// workflow step; callers must resolve again after any navigation.
type Result struct {
	Found     bool
	Element   browser.Element
	Strategy  string
	Candidate string
	Rounds    int
}

// Resolver finds the element that best matches a Spec.
type Resolver struct {
	logger       *zap.Logger
	strategies   []Strategy
	pollInterval time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the default strategy order.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithPollInterval sets the pause between strategy rounds.
func WithPollInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// NewResolver creates a resolver with the default strategy order.
func NewResolver(logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		logger:       logger.Named("resolver"),
		strategies:   DefaultStrategies(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve polls the applicable strategies in priority order until one yields an element that
// is visible and enabled, or the budget runs out. Each strategy call is capped at an equal
// share of the budget. A returned error means the caller's context ended; an exhausted
// budget is reported as Found == false with a nil error.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, spec Spec, budget time.Duration) (Result, error) {
	var applicable []Strategy
	for _, s := range r.strategies {
		if s.Applies(spec) {
			applicable = append(applicable, s)
		}
	}
	if len(applicable) == 0 {
		r.logger.Warn("No strategy applies to target.", zap.Stringer("target", spec))
		return Result{}, nil
	}

	rctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	share := budget / time.Duration(len(applicable))

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		for _, s := range applicable {
			if rctx.Err() != nil {
				break
			}
			res, ok := r.try(rctx, page, spec, s, share)
			if ok {
				res.Rounds = round
				r.logger.Debug("Target resolved.",
					zap.Stringer("target", spec),
					zap.String("strategy", res.Strategy),
					zap.String("candidate", res.Candidate),
					zap.Int("round", round))
				return res, nil
			}
		}

		select {
		case <-rctx.Done():
			if err := ctx.Err(); err != nil {
				return Result{Rounds: round}, err
			}
			r.logger.Debug("Resolution budget exhausted.", zap.Stringer("target", spec), zap.Int("rounds", round))
			return Result{Rounds: round}, nil
		case <-ticker.C:
		}
	}
}

func (r *Resolver) try(ctx context.Context, page browser.Page, spec Spec, s Strategy, share time.Duration) (Result, bool) {
	sctx, cancel := context.WithTimeout(ctx, share)
	defer cancel()

	matches, err := s.Find(sctx, page, spec)
	if err != nil {
		r.logger.Debug("Strategy failed.", zap.String("strategy", s.Name()), zap.Error(err))
	}
	for _, m := range matches {
		if usable(sctx, m.Element) {
			return Result{Found: true, Element: m.Element, Strategy: s.Name(), Candidate: m.Candidate}, true
		}
	}
	return Result{}, false
}

// usable is evaluated at return time so a hit is never reported for a hidden or disabled node.
func usable(ctx context.Context, el browser.Element) bool {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false
	}
	enabled, err := el.Enabled(ctx)
	return err == nil && enabled
}
