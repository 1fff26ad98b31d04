// internal/browser/cdp/browser.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/browser/stealth"
)

// Options configures the Chrome process and the persona presented to sites.
type Options struct {
	Headless    bool
	ExecPath    string
	UserDataDir string
	// Args are extra command line switches in "--name=value" or "--name" form.
	Args    []string
	Persona schemas.Persona
	Stealth bool
	// Debug forwards the raw CDP traffic to the logger at debug level.
	Debug bool
}

// Browser is a chromedp backed session.
type Browser struct {
	logger  *zap.Logger
	opts    Options
	primary target.ID

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu    sync.Mutex
	pages map[target.ID]*Page
}

var _ browser.Browser = (*Browser)(nil)

// allocatorOptions merges chromedp's defaults with the persona and user switches.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("mute-audio", true),
	)
	if opts.Persona.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.Persona.UserAgent))
	}
	if opts.Persona.Width > 0 && opts.Persona.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(int(opts.Persona.Width), int(opts.Persona.Height)))
	}
	if len(opts.Persona.Languages) > 0 {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Persona.Languages[0]))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}
	return allocOpts
}

// Launch starts Chrome and opens the primary tab. The returned browser owns the
// process; Close terminates it.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("cdp")
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithErrorf(logger.Sugar().Errorf),
		chromedp.WithLogf(logger.Sugar().Debugf),
	}
	if opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	b := &Browser{
		logger:        logger,
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pages:         make(map[target.ID]*Page),
	}

	runCtx, cancel := browser.CombineContext(browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, b.setupTasks()...); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	c := chromedp.FromContext(browserCtx)
	if c == nil || c.Target == nil {
		b.Close()
		return nil, browser.ErrNoBrowsingContext
	}
	b.primary = c.Target.TargetID
	b.pages[b.primary] = newPage(b, browserCtx, func() {}, b.primary)

	logger.Info("Chrome started.", zap.Bool("headless", opts.Headless), zap.String("target", string(b.primary)))
	return b, nil
}

func (b *Browser) setupTasks() chromedp.Tasks {
	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return target.SetDiscoverTargets(true).Do(ctx)
		}),
	}
	if b.opts.Stealth {
		tasks = append(tasks, stealth.Apply(b.opts.Persona, b.logger))
	}
	return tasks
}

// attach returns the cached page for id, binding a new chromedp context on first use.
func (b *Browser) attach(ctx context.Context, id target.ID) (*Page, error) {
	b.mu.Lock()
	if p, ok := b.pages[id]; ok {
		b.mu.Unlock()
		return p, nil
	}
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(id))
	runCtx, cancel := browser.CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, b.pageTasks()...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to attach to target %s: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pages[id]; ok {
		tabCancel()
		return p, nil
	}
	p := newPage(b, tabCtx, tabCancel, id)
	b.pages[id] = p
	return p, nil
}

func (b *Browser) pageTasks() chromedp.Tasks {
	if !b.opts.Stealth {
		return chromedp.Tasks{}
	}
	return stealth.Apply(b.opts.Persona, b.logger)
}

// Pages lists the open tabs with the primary one first.
func (b *Browser) Pages(ctx context.Context) ([]browser.Page, error) {
	runCtx, cancel := browser.CombineContext(b.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	var pages []browser.Page
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		p, err := b.attach(ctx, info.TargetID)
		if err != nil {
			b.logger.Debug("Skipping unreachable target.", zap.String("target", string(info.TargetID)), zap.Error(err))
			continue
		}
		if info.TargetID == b.primary {
			pages = append([]browser.Page{p}, pages...)
		} else {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return nil, browser.ErrNoBrowsingContext
	}
	return pages, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	runCtx, cancel := browser.CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, b.pageTasks()...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	c := chromedp.FromContext(tabCtx)
	p := newPage(b, tabCtx, tabCancel, c.Target.TargetID)

	b.mu.Lock()
	b.pages[p.target] = p
	b.mu.Unlock()
	return p, nil
}

// WatchNewPage reports page targets created after the call.
func (b *Browser) WatchNewPage(ctx context.Context) <-chan browser.Page {
	ch := make(chan browser.Page, 4)
	var (
		mu     sync.Mutex
		closed bool
	)

	chromedp.ListenBrowser(b.browserCtx, func(ev interface{}) {
		created, ok := ev.(*target.EventTargetCreated)
		if !ok || created.TargetInfo == nil || created.TargetInfo.Type != "page" || ctx.Err() != nil {
			return
		}
		id := created.TargetInfo.TargetID
		// Listeners must not block the event loop.
		go func() {
			p, err := b.attach(ctx, id)
			if err != nil {
				b.logger.Debug("Failed to attach to new target.", zap.String("target", string(id)), zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			select {
			case ch <- p:
			default:
			}
		}()
	})

	go func() {
		<-ctx.Done()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

// Close shuts the browser down and releases the allocator.
func (b *Browser) Close() error {
	b.mu.Lock()
	for id, p := range b.pages {
		if id != b.primary {
			p.cancel()
		}
	}
	b.pages = map[target.ID]*Page{}
	b.mu.Unlock()

	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && err != context.Canceled {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}
