// internal/workflow/orchestrator.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
	"github.com/xkilldash9x/lancet-cli/internal/locator"
	"github.com/xkilldash9x/lancet-cli/internal/navigation"
)

// finalizeTimeout bounds artifact capture and report delivery after the run ends.
const finalizeTimeout = 30 * time.Second

// Reporter persists the run report and returns where it went.
type Reporter interface {
	Write(ctx context.Context, report *schemas.RunReport) (string, error)
}

// ArtifactSink captures the last rendered page for diagnosis.
type ArtifactSink interface {
	Capture(ctx context.Context, page browser.Page, runID string) ([]string, error)
}

// HistoryStore records finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, report *schemas.RunReport) error
}

// Dependencies are the collaborators of an Orchestrator. Reporter, Artifacts and
// History are optional.
type Dependencies struct {
	Resolver   *locator.Resolver
	Executor   *action.Executor
	Guard      *navigation.Guard
	Transforms []navigation.Transform
	Reporter   Reporter
	Artifacts  ArtifactSink
	History    HistoryStore
}

// Orchestrator drives the booking state machine over one browser session.
type Orchestrator struct {
	logger *zap.Logger
	deps   Dependencies
	newID  func() string
}

// New creates an orchestrator.
func New(logger *zap.Logger, deps Dependencies) *Orchestrator {
	if deps.Transforms == nil {
		deps.Transforms = navigation.DefaultTransforms()
	}
	return &Orchestrator{
		logger: logger.Named("workflow"),
		deps:   deps,
		newID:  func() string { return uuid.NewString() },
	}
}

// run is the mutable state of a single run. It is owned by one goroutine.
type run struct {
	plan       Plan
	times      locale.TimeVariantSet
	browser    browser.Browser
	page       browser.Page
	state      schemas.WorkflowState
	surfaceURL string
	log        *schemas.AttemptLog
	report     *schemas.RunReport
}

// Run executes the plan. The returned report is always non-nil once the plan is valid.
// A non-nil error is the fatal termination cause and carries a *schemas.StepError.
func (o *Orchestrator) Run(ctx context.Context, b browser.Browser, plan Plan) (*schemas.RunReport, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	times, _ := locale.TimeVariants(plan.TimeLabel)

	r := &run{
		plan:    plan,
		times:   times,
		browser: b,
		state:   schemas.StateHome,
		log:     schemas.NewAttemptLog(),
		report: &schemas.RunReport{
			RunID:     o.newID(),
			Query:     plan.Query,
			StartedAt: time.Now().UTC(),
			Requested: plan.Dates(),
		},
	}
	logger := o.logger.With(zap.String("run_id", r.report.RunID))
	logger.Info("Run started.",
		zap.String("query", plan.Query),
		zap.Stringer("start", plan.StartDate),
		zap.Stringer("end", plan.EndDate),
		zap.Int("quantity", plan.Quantity))

	runCtx := ctx
	if plan.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, plan.Deadline)
		defer cancel()
	}

	err := o.prelude(runCtx, r)
	if err == nil {
		err = o.dateLoop(runCtx, r)
	}
	if err != nil {
		r.state = schemas.StateFailed
		r.report.Fatal = schemas.KindOf(err)
		if runCtx.Err() != nil {
			r.report.Fatal = schemas.ErrorKindDeadlineExceeded
			if errors.Is(ctx.Err(), context.Canceled) {
				r.report.Fatal = schemas.ErrorKindCanceled
			}
		}
		r.report.FatalMessage = err.Error()
		logger.Error("Run terminated.", zap.String("kind", string(r.report.Fatal)), zap.Error(err))
	}

	o.finalize(ctx, r)
	logger.Info("Run finished.",
		zap.String("outcome", string(r.report.Outcome())),
		zap.Int("attempts", len(r.report.Attempts)))
	return r.report, err
}

// finalize always runs, on a context detached from the run deadline.
func (o *Orchestrator) finalize(ctx context.Context, r *run) {
	fctx, cancel := context.WithTimeout(browser.Detach(ctx), finalizeTimeout)
	defer cancel()

	r.report.Attempts = r.log.Attempts()
	if r.page != nil {
		if u, err := r.page.URL(fctx); err == nil {
			r.report.FinalURL = u
		}
		if o.deps.Artifacts != nil {
			paths, err := o.deps.Artifacts.Capture(fctx, r.page, r.report.RunID)
			if err != nil {
				o.logger.Warn("Final artifact capture failed.", zap.Error(err))
			}
			r.report.Artifacts = paths
		}
	}
	r.report.FinishedAt = time.Now().UTC()

	if o.deps.Reporter != nil {
		if path, err := o.deps.Reporter.Write(fctx, r.report); err != nil {
			o.logger.Error("Failed to write run report.", zap.Error(err))
		} else {
			o.logger.Info("Run report written.", zap.String("path", path))
		}
	}
	if o.deps.History != nil {
		if err := o.deps.History.SaveRun(fctx, r.report); err != nil {
			o.logger.Error("Failed to persist run history.", zap.Error(err))
		}
	}
}

func (o *Orchestrator) transition(r *run, to schemas.WorkflowState, fields ...zap.Field) {
	from := r.state
	r.state = to
	o.logger.Info("State transition",
		append([]zap.Field{zap.Stringer("from", from), zap.Stringer("to", to)}, fields...)...)
}

// fatal wraps err for the top-level path, preferring the deadline classification.
func fatal(ctx context.Context, kind schemas.ErrorKind, step string, err error) error {
	if ctx.Err() != nil {
		return schemas.NewStepError(schemas.ErrorKindDeadlineExceeded, step, ctx.Err())
	}
	var stepErr *schemas.StepError
	if errors.As(err, &stepErr) {
		return stepErr
	}
	return schemas.NewStepError(kind, step, err)
}

// -- Prelude: Home through BookingPageOpen --

func (o *Orchestrator) prelude(ctx context.Context, r *run) error {
	pages, err := r.browser.Pages(ctx)
	if err != nil {
		return fatal(ctx, schemas.ErrorKindUnknown, "home", err)
	}
	if len(pages) == 0 {
		p, err := r.browser.NewPage(ctx)
		if err != nil {
			return fatal(ctx, schemas.ErrorKindUnknown, "home", fmt.Errorf("%w: %v", browser.ErrNoBrowsingContext, err))
		}
		pages = []browser.Page{p}
	}
	r.page = pages[0]

	ok, err := o.deps.Guard.EnsureHealthy(ctx, r.page, r.plan.HomeURL, o.deps.Transforms, r.plan.MaxReloads)
	if err != nil || !ok {
		return fatal(ctx, schemas.ErrorKindNavigationUnhealthy, "home", fmt.Errorf("home page unreachable: %s", r.plan.HomeURL))
	}

	o.transition(r, schemas.StateConsentPending)
	o.dismissConsent(ctx, r)

	o.transition(r, schemas.StateSearching)
	o.search(ctx, r)

	if err := o.openListing(ctx, r); err != nil {
		return err
	}
	o.transition(r, schemas.StateListingOpen)

	if _, err := o.authenticate(ctx, r); err != nil {
		return err
	}

	if err := o.openBookingPage(ctx, r); err != nil {
		return err
	}
	o.transition(r, schemas.StateBookingPageOpen, zap.String("url", r.surfaceURL))
	return nil
}

// dismissConsent rejects optional cookies. A missing control means consent is already settled.
func (o *Orchestrator) dismissConsent(ctx context.Context, r *run) {
	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.CookieRejectSpec(), r.plan.probeBudget())
	if err != nil || !res.Found {
		o.logger.Debug("No consent control; treating consent as satisfied.")
		return
	}
	out := o.deps.Executor.Click(ctx, res.Element, o.actionOptions(r))
	if !out.Succeeded {
		o.logger.Warn("Consent control did not accept the click.", zap.String("class", string(out.LastError)))
		return
	}
	o.logger.Info("Consent dismissed.", zap.String("strategy", res.Strategy))
}

// search submits the query. Submission is fire and forget; the listing step validates it.
func (o *Orchestrator) search(ctx context.Context, r *run) {
	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.SearchBoxSpec(), r.plan.probeBudget())
	if err == nil && res.Found {
		opts := o.actionOptions(r)
		if out := o.deps.Executor.Fill(ctx, res.Element, r.plan.Query, opts); !out.Succeeded {
			o.logger.Warn("Search box rejected the query.", zap.String("class", string(out.LastError)))
		} else if out := o.deps.Executor.Press(ctx, res.Element, browser.KeyEnter, opts); !out.Succeeded {
			o.logger.Warn("Search submission failed.", zap.String("class", string(out.LastError)))
		}
		return
	}
	if r.plan.SearchURL != "" {
		target := r.plan.SearchURLFor()
		o.logger.Info("No search box; opening search URL.", zap.String("url", target))
		if _, err := r.page.Navigate(ctx, target); err != nil {
			o.logger.Warn("Search URL failed to load.", zap.Error(err))
		}
		return
	}
	o.logger.Warn("No search box and no search URL configured; expecting results on the current page.")
}

// openListing follows the result that matches the query. Without a listing no date can
// be booked, so every failure here is fatal for the run.
func (o *Orchestrator) openListing(ctx context.Context, r *run) error {
	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.ResultLinkSpec(r.plan.Query), r.plan.StepBudget)
	if err != nil {
		return fatal(ctx, schemas.ErrorKindDeadlineExceeded, "open_listing", err)
	}
	if !res.Found {
		return schemas.NewStepError(schemas.ErrorKindNotFound, "open_listing",
			fmt.Errorf("no result matches '%s'", r.plan.Query))
	}
	o.logger.Info("Listing result resolved.", zap.String("strategy", res.Strategy), zap.String("candidate", res.Candidate))

	target, err := o.follow(ctx, r, res.Element, "open_listing")
	if err != nil {
		return fatal(ctx, schemas.ErrorKindAmbiguousNavigation, "open_listing", err)
	}
	r.page = target.Page
	return nil
}

// follow clicks el and adopts whichever browsing context the click activated.
func (o *Orchestrator) follow(ctx context.Context, r *run, el browser.Element, step string) (navigation.Target, error) {
	trigger := func(ctx context.Context) error {
		return o.deps.Executor.Click(ctx, el, o.actionOptions(r)).AsError(step)
	}
	return o.deps.Guard.ResolveNavigationTarget(ctx, r.browser, r.page, trigger,
		navigation.TargetOptions{Budget: r.plan.NavigationBudget})
}

// authenticate logs in when a password field is present. It reports whether a login happened.
func (o *Orchestrator) authenticate(ctx context.Context, r *run) (bool, error) {
	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.PasswordFieldSpec(), r.plan.probeBudget())
	if err != nil {
		return false, fatal(ctx, schemas.ErrorKindDeadlineExceeded, "auth_probe", err)
	}
	if !res.Found {
		return false, nil
	}
	o.transition(r, schemas.StateAuthPending)

	if !r.plan.Credentials.Complete() {
		return false, schemas.NewStepError(schemas.ErrorKindAuthRequired, "authenticate",
			errors.New("login form detected but credentials are not configured"))
	}

	opts := o.actionOptions(r)
	email, err := o.deps.Resolver.Resolve(ctx, r.page, locator.EmailFieldSpec(), r.plan.StepBudget)
	if err != nil {
		return false, fatal(ctx, schemas.ErrorKindDeadlineExceeded, "authenticate", err)
	}
	if !email.Found {
		return false, schemas.NewStepError(schemas.ErrorKindNotFound, "authenticate", errors.New("email field not found"))
	}
	if err := o.deps.Executor.Fill(ctx, email.Element, r.plan.Credentials.Email, opts).AsError("authenticate"); err != nil {
		return false, fatal(ctx, schemas.ErrorKindNotInteractable, "authenticate", err)
	}
	if err := o.deps.Executor.Fill(ctx, res.Element, r.plan.Credentials.Password, opts).AsError("authenticate"); err != nil {
		return false, fatal(ctx, schemas.ErrorKindNotInteractable, "authenticate", err)
	}

	submitted := false
	if btn, err := o.deps.Resolver.Resolve(ctx, r.page, locator.LoginButtonSpec(), r.plan.probeBudget()); err == nil && btn.Found {
		submitted = o.deps.Executor.Click(ctx, btn.Element, opts).Succeeded
	}
	if !submitted {
		if err := o.deps.Executor.Press(ctx, res.Element, browser.KeyEnter, opts).AsError("authenticate"); err != nil {
			return false, fatal(ctx, schemas.ErrorKindNotInteractable, "authenticate", err)
		}
	}

	if err := o.waitGone(ctx, r.page, locator.PasswordFieldSpec(), r.plan.StepBudget); err != nil {
		return false, fatal(ctx, schemas.ErrorKindAuthRequired, "authenticate", err)
	}
	o.logger.Info("Logged in.")
	return true, nil
}

// waitGone polls until no usable element matches spec.
func (o *Orchestrator) waitGone(ctx context.Context, page browser.Page, spec locator.Spec, budget time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		res, err := o.deps.Resolver.Resolve(wctx, page, spec, 50*time.Millisecond)
		if err == nil && !res.Found {
			return nil
		}
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s still present after %s; login was not accepted", spec, budget)
		case <-ticker.C:
		}
	}
}

// openBookingPage moves from the listing to the booking surface and verifies it is healthy.
func (o *Orchestrator) openBookingPage(ctx context.Context, r *run) error {
	res, err := o.deps.Resolver.Resolve(ctx, r.page, locator.BookingEntrySpec(), r.plan.StepBudget)
	if err != nil {
		return fatal(ctx, schemas.ErrorKindDeadlineExceeded, "open_booking", err)
	}

	opened := false
	if res.Found {
		target, err := o.follow(ctx, r, res.Element, "open_booking")
		switch {
		case err == nil:
			r.page = target.Page
			opened = true
		case ctx.Err() != nil:
			return fatal(ctx, schemas.ErrorKindDeadlineExceeded, "open_booking", err)
		case r.plan.BookingURL == "":
			return fatal(ctx, schemas.ErrorKindAmbiguousNavigation, "open_booking", err)
		default:
			o.logger.Warn("Booking control did not navigate; using booking URL.", zap.Error(err))
		}
	}

	if !opened {
		if r.plan.BookingURL == "" {
			return schemas.NewStepError(schemas.ErrorKindNotFound, "open_booking",
				errors.New("no booking control and no booking URL configured"))
		}
		if err := o.loadSurface(ctx, r, r.plan.BookingURL); err != nil {
			return err
		}
	} else {
		current, err := r.page.URL(ctx)
		if err != nil {
			return fatal(ctx, schemas.ErrorKindUnknown, "open_booking", err)
		}
		notFound, err := o.deps.Guard.IsNotFound(ctx, r.page, 0)
		if err != nil || notFound {
			if err := o.loadSurface(ctx, r, current); err != nil {
				return err
			}
		} else {
			r.surfaceURL = current
		}
	}

	o.dismissConsent(ctx, r)
	loggedIn, err := o.authenticate(ctx, r)
	if err != nil {
		return err
	}
	if loggedIn {
		// Login redirects usually leave the booking surface.
		if err := o.loadSurface(ctx, r, r.surfaceURL); err != nil {
			return err
		}
	}
	return nil
}

// loadSurface navigates to the booking surface through the recovery ladder.
func (o *Orchestrator) loadSurface(ctx context.Context, r *run, target string) error {
	ok, err := o.deps.Guard.EnsureHealthy(ctx, r.page, target, o.deps.Transforms, r.plan.MaxReloads)
	if err != nil {
		return fatal(ctx, schemas.ErrorKindDeadlineExceeded, "open_booking", err)
	}
	if !ok {
		return schemas.NewStepError(schemas.ErrorKindNavigationUnhealthy, "open_booking",
			fmt.Errorf("booking surface unreachable: %s", target))
	}
	current, err := r.page.URL(ctx)
	if err != nil {
		current = target
	}
	r.surfaceURL = current
	return nil
}

func (o *Orchestrator) actionOptions(r *run) action.Options {
	return action.Options{Retries: r.plan.Retries, PerTry: r.plan.PerTry}
}
