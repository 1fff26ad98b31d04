// internal/browser/pw/browser.go
package pw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/browser/stealth"
)

const (
	installTimeout = 5 * time.Minute
	launchTimeout  = 60 * time.Second
)

// Options configures the Playwright managed Chromium.
type Options struct {
	Headless bool
	ExecPath string
	Args     []string
	Persona  schemas.Persona
	Stealth  bool
	// Install downloads the Playwright driver and Chromium before launching.
	Install bool
}

// Browser is a Playwright backed session with a single browser context.
type Browser struct {
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext

	mu      sync.Mutex
	pages   map[playwright.Page]*Page
	seq     int
	subs    map[int]chan browser.Page
	nextSub int
}

var _ browser.Browser = (*Browser)(nil)

func ensureInstallation(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func launchOptions(opts Options) playwright.BrowserTypeLaunchOptions {
	args := []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
	}
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     append(args, opts.Args...),
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
	}
	if opts.ExecPath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecPath)
	}
	return lo
}

func contextOptions(p schemas.Persona) playwright.BrowserNewContextOptions {
	co := playwright.BrowserNewContextOptions{}
	if p.UserAgent != "" {
		co.UserAgent = playwright.String(p.UserAgent)
	}
	if p.Locale != "" {
		co.Locale = playwright.String(p.Locale)
	}
	if p.Timezone != "" {
		co.TimezoneId = playwright.String(p.Timezone)
	}
	if p.Width > 0 && p.Height > 0 {
		co.Viewport = &playwright.Size{Width: int(p.Width), Height: int(p.Height)}
	}
	if p.Mobile {
		co.IsMobile = playwright.Bool(true)
	}
	if len(p.Languages) > 0 {
		co.ExtraHttpHeaders = map[string]string{"Accept-Language": p.AcceptLanguage()}
	}
	return co
}

// Launch starts the Playwright driver, Chromium and one browser context with an open page.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("playwright")
	if opts.Install {
		if err := ensureInstallation(ctx, logger); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}
	chromium, err := pw.Chromium.Launch(launchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser instance: %w", err)
	}
	bctx, err := chromium.NewContext(contextOptions(opts.Persona))
	if err != nil {
		_ = chromium.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	b := &Browser{
		logger:  logger,
		pw:      pw,
		browser: chromium,
		bctx:    bctx,
		pages:   make(map[playwright.Page]*Page),
		subs:    make(map[int]chan browser.Page),
	}

	if opts.Stealth {
		script, err := stealth.Script(opts.Persona)
		if err == nil {
			err = bctx.AddInitScript(playwright.Script{Content: playwright.String(script)})
		}
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to install stealth script: %w", err)
		}
	}

	bctx.OnPage(func(p playwright.Page) {
		b.notify(b.wrap(p))
	})

	if _, err := bctx.NewPage(); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open primary page: %w", err)
	}

	logger.Info("Browser manager initialized successfully.", zap.String("browser_version", chromium.Version()))
	return b, nil
}

func (b *Browser) wrap(p playwright.Page) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.pages[p]; ok {
		return existing
	}
	b.seq++
	wrapped := &Page{page: p, id: fmt.Sprintf("pw-%d", b.seq)}
	b.pages[p] = wrapped
	return wrapped
}

func (b *Browser) notify(p *Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Pages lists open pages in creation order, the primary first.
func (b *Browser) Pages(ctx context.Context) ([]browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pages []browser.Page
	for _, p := range b.bctx.Pages() {
		if p.IsClosed() {
			continue
		}
		pages = append(pages, b.wrap(p))
	}
	if len(pages) == 0 {
		return nil, browser.ErrNoBrowsingContext
	}
	return pages, nil
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	var p playwright.Page
	err := do(ctx, func() error {
		var err error
		p, err = b.bctx.NewPage()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return b.wrap(p), nil
}

// WatchNewPage subscribes to pages opened in the browser context until ctx ends.
func (b *Browser) WatchNewPage(ctx context.Context) <-chan browser.Page {
	ch := make(chan browser.Page, 4)
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Close tears down the context, the browser and the driver process.
func (b *Browser) Close() error {
	var errs []error
	if b.bctx != nil {
		if err := b.bctx.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if err := b.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop driver: %w", err))
	}
	return errors.Join(errs...)
}

// do runs fn and returns early with the context error when ctx ends first.
// Playwright calls are bounded by their own timeout options, so fn always finishes.
func do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return mapError(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// timeoutMS converts the remaining time on ctx into a Playwright timeout.
func timeoutMS(ctx context.Context, fallback time.Duration) *float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

var staleMarkers = []string{
	"Element is not attached to the DOM",
	"JSHandle is disposed",
	"Execution context was destroyed",
	"Cannot find context with specified id",
}

// mapError translates Playwright failures onto the browser sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
		}
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
	}
	return err
}
