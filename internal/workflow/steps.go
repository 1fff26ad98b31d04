// internal/workflow/steps.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
	"github.com/xkilldash9x/lancet-cli/internal/locator"
)

// dateLoop books each requested date in ascending order. A date's failure is recorded
// and the loop moves on; only navigation health and the run deadline stop it.
func (o *Orchestrator) dateLoop(ctx context.Context, r *run) error {
	for i, date := range r.plan.Dates() {
		if err := ctx.Err(); err != nil {
			if i == 0 {
				return schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, "select_date", err)
			}
			o.logger.Warn("Run deadline reached; remaining dates skipped.", zap.Stringer("next", date))
			return nil
		}

		if i > 0 {
			if err := o.loadSurface(ctx, r, r.surfaceURL); err != nil {
				if ctx.Err() != nil {
					o.logger.Warn("Run deadline reached while reloading the booking surface.")
					return nil
				}
				return err
			}
			o.dismissConsent(ctx, r)
			r.state = schemas.StateBookingPageOpen
		}

		attempt := o.runDate(ctx, r, date)
		r.log.Append(attempt)
		if attempt.Confirmed() {
			o.logger.Info("Date booked.", zap.Stringer("date", date))
		} else {
			o.logger.Warn("Date not booked.", zap.Stringer("date", date),
				zap.Any("errors", attempt.Errors), zap.Strings("detail", attempt.Detail))
		}
	}
	return nil
}

// runDate attempts one date. Every failure is captured in the returned attempt and
// never escapes as an error.
func (o *Orchestrator) runDate(ctx context.Context, r *run, date schemas.CalendarDate) schemas.BookingAttempt {
	attempt := schemas.BookingAttempt{
		ID:        fmt.Sprintf("%s-%s", r.report.RunID, date.ISO()),
		Date:      date,
		StartedAt: time.Now().UTC(),
	}
	dateField := zap.Stringer("date", date)

	steps := []struct {
		name string
		to   schemas.WorkflowState
		run  func(context.Context, *run) error
	}{
		{"select_date", schemas.StateDateSelected, func(ctx context.Context, r *run) error {
			return o.resolveAndClick(ctx, r, locator.DaySpec(date), r.plan.StepBudget, "select_date")
		}},
		{"select_time", schemas.StateTimeSelected, func(ctx context.Context, r *run) error {
			return o.resolveAndClick(ctx, r, locator.TimeSpec(r.times), r.plan.StepBudget, "select_time")
		}},
		{"set_quantity", schemas.StateQuantitySet, o.setQuantity},
		{"confirm", schemas.StateConfirmed, o.confirm},
	}

	for _, step := range steps {
		if err := step.run(ctx, r); err != nil {
			kind := schemas.KindOf(err)
			if ctx.Err() != nil {
				kind = schemas.ErrorKindDeadlineExceeded
			}
			attempt.Errors = append(attempt.Errors, kind)
			attempt.Detail = append(attempt.Detail, err.Error())
			o.transition(r, schemas.StateFailed, dateField, zap.String("step", step.name), zap.String("kind", string(kind)))
			break
		}
		o.transition(r, step.to, dateField)
	}

	attempt.FinalState = r.state
	attempt.FinishedAt = time.Now().UTC()
	return attempt
}

// resolveAndClick resolves spec and clicks it. A node that detaches between resolution
// and the click is resolved once more.
func (o *Orchestrator) resolveAndClick(ctx context.Context, r *run, spec locator.Spec, budget time.Duration, step string) error {
	var out action.Outcome
	for pass := 0; pass < 2; pass++ {
		res, err := o.deps.Resolver.Resolve(ctx, r.page, spec, budget)
		if err != nil {
			return schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, step, err)
		}
		if !res.Found {
			return schemas.NewStepError(schemas.ErrorKindNotFound, step,
				fmt.Errorf("%s not found within %s", spec, budget))
		}
		out = o.deps.Executor.Click(ctx, res.Element, o.actionOptions(r))
		if out.Succeeded || out.LastError != action.ClassDetached {
			break
		}
		o.logger.Debug("Target detached; resolving again.", zap.Stringer("target", spec))
	}
	return out.AsError(step)
}

// setQuantity resets the counter with bounded decrements and then clicks the increment
// control exactly Quantity times. The reset also runs for a zero quantity. The widget's
// displayed count is not read back.
func (o *Orchestrator) setQuantity(ctx context.Context, r *run) error {
	const step = "set_quantity"
	opts := o.actionOptions(r)

	if r.plan.ResetDecrements > 0 {
		if minus, err := o.deps.Resolver.Resolve(ctx, r.page, locator.MinusSpec(), r.plan.probeBudget()); err == nil && minus.Found {
			for i := 0; i < r.plan.ResetDecrements; i++ {
				// Disabled at zero; stop at the first refusal.
				if !o.deps.Executor.Click(ctx, minus.Element, action.Options{Retries: 1, PerTry: opts.PerTry}).Succeeded {
					break
				}
			}
		}
	}
	if r.plan.Quantity == 0 {
		return nil
	}

	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.PlusSpec(), r.plan.StepBudget)
	if err != nil {
		return schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, step, err)
	}
	if !res.Found {
		return schemas.NewStepError(schemas.ErrorKindNotFound, step, errors.New("increment control not found"))
	}

	plus := res.Element
	for clicks, rebinds := 0, 0; clicks < r.plan.Quantity; {
		out := o.deps.Executor.Click(ctx, plus, opts)
		if out.Succeeded {
			clicks++
			continue
		}
		if out.LastError != action.ClassDetached || rebinds >= r.plan.Quantity {
			return fmt.Errorf("increment %d of %d: %w", clicks+1, r.plan.Quantity, out.AsError(step))
		}
		rebinds++
		res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.PlusSpec(), r.plan.StepBudget)
		if err != nil {
			return schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, step, err)
		}
		if !res.Found {
			return schemas.NewStepError(schemas.ErrorKindNotFound, step, errors.New("increment control disappeared"))
		}
		plus = res.Element
	}
	o.logger.Debug("Quantity set.", zap.Int("clicks", r.plan.Quantity))
	return nil
}

// confirm walks the two-phase confirmation: checkout, optional terms, completion.
func (o *Orchestrator) confirm(ctx context.Context, r *run) error {
	if err := o.resolveAndClick(ctx, r, locator.CheckoutSpec(), r.plan.StepBudget, "checkout"); err != nil {
		return err
	}

	if r.plan.TermsScroll > 0 {
		if err := r.page.Scroll(ctx, r.plan.TermsScroll); err != nil {
			o.logger.Debug("Scroll before terms failed.", zap.Error(err))
		}
	}
	if terms, err := o.deps.Resolver.Resolve(ctx, r.page, locator.TermsSpec(), r.plan.probeBudget()); err == nil && terms.Found {
		if out := o.deps.Executor.Click(ctx, terms.Element, o.actionOptions(r)); !out.Succeeded {
			o.logger.Warn("Terms checkbox did not accept the click.", zap.String("class", string(out.LastError)))
		}
	}

	return o.resolveAndClick(ctx, r, locator.CompleteSpec(), r.plan.StepBudget, "complete")
}
