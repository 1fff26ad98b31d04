// internal/action/executor.go
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

const visibilityPoll = 50 * time.Millisecond

// nativeShare is the part of a per-try window the native action may use. The rest
// stays available for the DOM-level fallback.
const nativeShare = 0.75

// ErrorClass is the classification of the last failed attempt.
type ErrorClass string

const (
	ClassNotVisible ErrorClass = "NotVisible"
	ClassNotEnabled ErrorClass = "NotEnabled"
	ClassDetached   ErrorClass = "Detached"
	ClassUnknown    ErrorClass = "Unknown"
)

// Classify maps a driver error onto an ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, browser.ErrStaleElement):
		return ClassDetached
	case errors.Is(err, browser.ErrNotVisible):
		return ClassNotVisible
	case errors.Is(err, browser.ErrNotEnabled):
		return ClassNotEnabled
	default:
		return ClassUnknown
	}
}

// Options bounds a single executor call.
type Options struct {
	Retries int
	PerTry  time.Duration
}

// nativeBudget is how long the native click or typing may run inside one attempt.
func (o Options) nativeBudget() time.Duration {
	return time.Duration(float64(o.normalized().PerTry) * nativeShare)
}

func (o Options) normalized() Options {
	if o.Retries < 1 {
		o.Retries = 1
	}
	if o.PerTry <= 0 {
		o.PerTry = 5 * time.Second
	}
	return o
}

// Outcome is the inspectable result of an action.
type Outcome struct {
	Succeeded bool
	Attempts  int
	LastError ErrorClass
	// Err is the underlying error of the last attempt.
	Err error
	// Method records how the successful attempt landed: "native" or "dispatch".
	Method string
}

// Kind converts a failed outcome into the workflow error taxonomy.
func (o Outcome) Kind() schemas.ErrorKind {
	if o.Succeeded {
		return ""
	}
	if errors.Is(o.Err, context.DeadlineExceeded) || errors.Is(o.Err, context.Canceled) {
		return schemas.ErrorKindDeadlineExceeded
	}
	return schemas.ErrorKindNotInteractable
}

// AsError returns nil for a success or a StepError for the given step.
func (o Outcome) AsError(step string) error {
	if o.Succeeded {
		return nil
	}
	return schemas.NewStepError(o.Kind(), step,
		fmt.Errorf("%s after %d attempt(s): %w", o.LastError, o.Attempts, o.Err))
}

// Executor performs clicks and fills with bounded retries.
type Executor struct {
	logger *zap.Logger
	pacer  Pacer
}

// NewExecutor creates an executor. A nil pacer falls back to NoopPacer.
func NewExecutor(logger *zap.Logger, pacer Pacer) *Executor {
	if pacer == nil {
		pacer = NoopPacer{}
	}
	return &Executor{logger: logger.Named("executor"), pacer: pacer}
}

// attemptFunc performs one attempt and reports the method that landed.
type attemptFunc func(ctx context.Context) (string, error)

func (e *Executor) run(ctx context.Context, op string, el browser.Element, opts Options, attempt attemptFunc) Outcome {
	opts = opts.normalized()
	var out Outcome

	for i := 1; i <= opts.Retries; i++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}
		out.Attempts = i

		tctx, cancel := context.WithTimeout(ctx, opts.PerTry)
		method, err := attempt(tctx)
		cancel()

		if err == nil {
			out.Succeeded = true
			out.Method = method
			out.LastError = ""
			out.Err = nil
			e.logger.Debug("Action succeeded.",
				zap.String("op", op), zap.String("element", el.Describe()),
				zap.String("method", method), zap.Int("attempt", i))
			return out
		}

		// A per-try timeout is an ordinary failed attempt, not the run deadline.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("attempt timed out after %s: %v", opts.PerTry, err)
		}
		out.LastError = Classify(err)
		out.Err = err
		e.logger.Debug("Action attempt failed.",
			zap.String("op", op), zap.String("element", el.Describe()),
			zap.Int("attempt", i), zap.String("class", string(out.LastError)), zap.Error(err))

		// A detached node will not come back; the caller must resolve again.
		if out.LastError == ClassDetached {
			break
		}
		if i < opts.Retries {
			if err := e.pacer.Pause(ctx); err != nil {
				out.Err = err
				break
			}
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(out.Err, ctxErr) {
		out.Err = fmt.Errorf("%w: %v", ctxErr, out.Err)
	}
	if out.LastError == "" {
		out.LastError = Classify(out.Err)
	}
	e.logger.Info("Action failed.",
		zap.String("op", op), zap.String("element", el.Describe()),
		zap.Int("attempts", out.Attempts), zap.String("class", string(out.LastError)))
	return out
}

// prepare waits for visibility, checks enablement and scrolls the element into view.
func (e *Executor) prepare(ctx context.Context, el browser.Element) error {
	if err := waitVisible(ctx, el); err != nil {
		return err
	}
	enabled, err := el.Enabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return browser.ErrNotEnabled
	}
	// Scrolling is best effort unless it proves the node is gone.
	if err := el.ScrollIntoView(ctx); err != nil {
		if errors.Is(err, browser.ErrStaleElement) {
			return err
		}
		e.logger.Debug("Scroll into view failed.", zap.String("element", el.Describe()), zap.Error(err))
	}
	return nil
}

func waitVisible(ctx context.Context, el browser.Element) error {
	ticker := time.NewTicker(visibilityPoll)
	defer ticker.Stop()
	for {
		visible, err := el.Visible(ctx)
		if err != nil && errors.Is(err, browser.ErrStaleElement) {
			return err
		}
		if err == nil && visible {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", browser.ErrNotVisible, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Click activates el. A native click is tried first; if it fails a synthetic DOM click
// is dispatched before the attempt counts as failed.
func (e *Executor) Click(ctx context.Context, el browser.Element, opts Options) Outcome {
	return e.run(ctx, "click", el, opts, func(ctx context.Context) (string, error) {
		if err := e.prepare(ctx, el); err != nil {
			return "", err
		}
		if err := e.pacer.Interact(ctx); err != nil {
			return "", err
		}
		nctx, cancel := context.WithTimeout(ctx, opts.nativeBudget())
		nativeErr := el.Click(nctx)
		cancel()
		if nativeErr == nil {
			return "native", nil
		}
		if errors.Is(nativeErr, browser.ErrStaleElement) {
			return "", nativeErr
		}
		// Only the attempt window ending stops the fallback; a native timeout does not.
		if ctx.Err() != nil {
			return "", nativeErr
		}
		if err := el.DispatchClick(ctx); err != nil {
			return "", fmt.Errorf("native click: %v; dispatched click: %w", nativeErr, err)
		}
		return "dispatch", nil
	})
}

// Fill clears el and types text one character at a time with a randomized delay.
// When key input fails the value is assigned directly with input and change events.
func (e *Executor) Fill(ctx context.Context, el browser.Element, text string, opts Options) Outcome {
	return e.run(ctx, "fill", el, opts, func(ctx context.Context) (string, error) {
		if err := e.prepare(ctx, el); err != nil {
			return "", err
		}
		if err := e.pacer.Interact(ctx); err != nil {
			return "", err
		}
		nctx, cancel := context.WithTimeout(ctx, opts.nativeBudget())
		typeErr := e.typeText(nctx, el, text)
		cancel()
		if typeErr == nil {
			return "native", nil
		}
		if errors.Is(typeErr, browser.ErrStaleElement) || ctx.Err() != nil {
			return "", typeErr
		}
		if err := el.SetValue(ctx, text); err != nil {
			return "", fmt.Errorf("typing: %v; value assignment: %w", typeErr, err)
		}
		return "dispatch", nil
	})
}

func (e *Executor) typeText(ctx context.Context, el browser.Element, text string) error {
	// Focus through a click; some inputs only accept keys after a pointer interaction.
	if err := el.Click(ctx); err != nil && errors.Is(err, browser.ErrStaleElement) {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for i, r := range text {
		if i > 0 {
			if err := e.pacer.KeyDelay(ctx); err != nil {
				return err
			}
		}
		if err := el.TypeRune(ctx, r); err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
	}
	return nil
}

// Press sends a named key to el, retrying like Click.
func (e *Executor) Press(ctx context.Context, el browser.Element, key string, opts Options) Outcome {
	return e.run(ctx, "press", el, opts, func(ctx context.Context) (string, error) {
		if err := e.pacer.Interact(ctx); err != nil {
			return "", err
		}
		if err := el.Press(ctx, key); err != nil {
			return "", err
		}
		return "native", nil
	})
}
