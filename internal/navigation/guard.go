// internal/navigation/guard.go
package navigation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
)

// DefaultNotFoundMarkers are matched against the title and visible headings.
var DefaultNotFoundMarkers = []string{
	"404",
	"not found",
	"page not found",
	"غير موجود",
	"الصفحة غير موجودة",
}

const notFoundTextSelector = `h1, h2, h3, [role="heading"], p`

// GuardConfig tunes the recovery ladder.
type GuardConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Markers replaces DefaultNotFoundMarkers when set.
	Markers []string
	// PollInterval is how often a same-context URL change is sampled.
	PollInterval time.Duration
}

// DefaultGuardConfig is used for live runs.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		InitialBackoff: 750 * time.Millisecond,
		MaxBackoff:     6 * time.Second,
		Multiplier:     2,
		PollInterval:   100 * time.Millisecond,
	}
}

// Guard detects dead pages and recovers from them.
type Guard struct {
	logger *zap.Logger
	cfg    GuardConfig
}

// NewGuard creates a guard.
func NewGuard(logger *zap.Logger, cfg GuardConfig) *Guard {
	if len(cfg.Markers) == 0 {
		cfg.Markers = DefaultNotFoundMarkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Guard{logger: logger.Named("navigation"), cfg: cfg}
}

func (g *Guard) newBackOff(maxReloads int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialBackoff
	b.MaxInterval = g.cfg.MaxBackoff
	b.Multiplier = g.cfg.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(maxReloads))
}

// IsNotFound reports whether the page is in a not-found state: an error status, a marker
// in the title, or a visible heading carrying a marker.
func (g *Guard) IsNotFound(ctx context.Context, page browser.Page, status int) (bool, error) {
	if status >= 400 {
		return true, nil
	}
	title, err := page.Title(ctx)
	if err != nil {
		return false, fmt.Errorf("read title: %w", err)
	}
	if g.hasMarker(title) {
		return true, nil
	}

	els, err := page.QueryAll(ctx, browser.Query{Selector: notFoundTextSelector, Limit: 50})
	if err != nil {
		return false, fmt.Errorf("scan headings: %w", err)
	}
	for _, el := range els {
		if !g.hasMarker(el.Text()) {
			continue
		}
		if visible, err := el.Visible(ctx); err == nil && visible {
			return true, nil
		}
	}
	return false, nil
}

func (g *Guard) hasMarker(text string) bool {
	for _, m := range g.cfg.Markers {
		if locale.ContainsToken(text, m) {
			return true
		}
	}
	return false
}

// check classifies a load. Driver errors count as unhealthy unless the run context ended.
func (g *Guard) check(ctx context.Context, page browser.Page, status int, loadErr error) (bool, error) {
	if loadErr != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.Warn("Page load failed.", zap.Error(loadErr))
		return false, nil
	}
	notFound, err := g.IsNotFound(ctx, page, status)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.Warn("Health probe failed.", zap.Error(err))
		return false, nil
	}
	if notFound {
		g.logger.Info("Page is in a not-found state.", zap.Int("status", status))
	}
	return !notFound, nil
}

// EnsureHealthy loads primaryURL and walks the recovery ladder until the page is healthy:
// up to maxReloads in-place reloads with exponential backoff, then each alternate URL in
// order. It returns false only when every option is exhausted; callers treat that as fatal
// for the whole run. A non-nil error means ctx ended.
func (g *Guard) EnsureHealthy(ctx context.Context, page browser.Page, primaryURL string, transforms []Transform, maxReloads int) (bool, error) {
	status, err := page.Navigate(ctx, primaryURL)
	healthy, cerr := g.check(ctx, page, status, err)
	if cerr != nil || healthy {
		return healthy, cerr
	}

	b := g.newBackOff(maxReloads)
	for attempt := 1; attempt <= maxReloads; attempt++ {
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return false, err
		}
		g.logger.Info("Reloading page", zap.Int("attempt", attempt), zap.Duration("backoff", delay))
		status, err = page.Reload(ctx)
		healthy, cerr = g.check(ctx, page, status, err)
		if cerr != nil || healthy {
			return healthy, cerr
		}
	}

	for _, transform := range transforms {
		alt, ok := transform(primaryURL)
		if !ok || alt == primaryURL {
			continue
		}
		g.logger.Info("Trying alternate URL", zap.String("url", alt))
		status, err = page.Navigate(ctx, alt)
		healthy, cerr = g.check(ctx, page, status, err)
		if cerr != nil || healthy {
			return healthy, cerr
		}
	}

	g.logger.Warn("Recovery ladder exhausted.", zap.String("url", primaryURL))
	return false, nil
}

// TargetOptions bounds ResolveNavigationTarget.
type TargetOptions struct {
	Budget time.Duration
	// URLPattern, when set, must match the changed URL of a same-context transition.
	URLPattern *regexp.Regexp
}

// Target is the browsing context that became active after a trigger.
type Target struct {
	Page       browser.Page
	NewContext bool
}

// ResolveNavigationTarget invokes trigger and races two outcomes: a new browsing context
// opening, or the current page's URL changing. The first to arrive wins. When neither
// happens within the budget the error is classified AmbiguousNavigation.
func (g *Guard) ResolveNavigationTarget(ctx context.Context, b browser.Browser, page browser.Page, trigger func(context.Context) error, opts TargetOptions) (Target, error) {
	if opts.Budget <= 0 {
		opts.Budget = 10 * time.Second
	}
	wctx, cancel := context.WithTimeout(ctx, opts.Budget)
	defer cancel()

	// The watch starts before the trigger so a fast popup is not missed.
	newPages := b.WatchNewPage(wctx)
	before, err := page.URL(ctx)
	if err != nil {
		return Target{}, fmt.Errorf("read current url: %w", err)
	}

	if err := trigger(ctx); err != nil {
		return Target{}, err
	}

	waitNewContext := func(ctx context.Context) (Target, error) {
		select {
		case p, ok := <-newPages:
			if !ok {
				return Target{}, ctx.Err()
			}
			return Target{Page: p, NewContext: true}, nil
		case <-ctx.Done():
			return Target{}, ctx.Err()
		}
	}
	waitURLChange := func(ctx context.Context) (Target, error) {
		ticker := time.NewTicker(g.cfg.PollInterval)
		defer ticker.Stop()
		for {
			current, err := page.URL(ctx)
			if err == nil && current != before && (opts.URLPattern == nil || opts.URLPattern.MatchString(current)) {
				return Target{Page: page}, nil
			}
			select {
			case <-ctx.Done():
				return Target{}, ctx.Err()
			case <-ticker.C:
			}
		}
	}

	target, winner, err := FirstOf(wctx, waitNewContext, waitURLChange)
	if err != nil {
		if ctx.Err() != nil {
			return Target{}, schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, "navigation", ctx.Err())
		}
		return Target{}, schemas.NewStepError(schemas.ErrorKindAmbiguousNavigation, "navigation",
			fmt.Errorf("no new context and no url change within %s", opts.Budget))
	}

	if url, err := target.Page.URL(ctx); err == nil {
		g.logger.Info("Navigation target resolved.",
			zap.Bool("new_context", target.NewContext), zap.Int("signal", winner), zap.String("url", url))
	}
	return target, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
