// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

// Page is one Chrome tab.
type Page struct {
	owner  *Browser
	ctx    context.Context
	cancel context.CancelFunc
	target target.ID
}

var _ browser.Page = (*Page)(nil)

func newPage(owner *Browser, ctx context.Context, cancel context.CancelFunc, id target.ID) *Page {
	return &Page{owner: owner, ctx: ctx, cancel: cancel, target: id}
}

func (p *Page) ID() string { return string(p.target) }

// run executes actions on the tab while honouring the caller's cancellation.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// evaluate runs expr and decodes its JSON result into out (which may be nil).
func (p *Page) evaluate(ctx context.Context, expr string, out any) error {
	var raw []byte
	if err := p.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		if isContextLost(err) {
			return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
		}
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// isContextLost matches the errors Chrome returns when the document a script was
// bound to has been replaced.
func isContextLost(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Inspected target navigated or closed")
}

func (p *Page) navigate(ctx context.Context, action chromedp.Action) (int, error) {
	runCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()
	resp, err := chromedp.RunResponse(runCtx, action)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	return p.navigate(ctx, chromedp.Navigate(url))
}

func (p *Page) Reload(ctx context.Context) (int, error) {
	return p.navigate(ctx, chromedp.Reload())
}

// QueryAll registers every match in the document and same-origin frames and returns handles.
func (p *Page) QueryAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	expr, err := call(queryJS, q.Selector, q.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	var results []queryResult
	if err := p.evaluate(ctx, expr, &results); err != nil {
		if errors.Is(err, browser.ErrStaleElement) {
			// The document changed mid-query; the caller polls again.
			return nil, nil
		}
		return nil, fmt.Errorf("query %q: %w", q.Selector, err)
	}
	elements := make([]browser.Element, 0, len(results))
	for _, r := range results {
		elements = append(elements, &element{page: p, id: r.ID, text: r.Text, tag: r.Tag})
	}
	return elements, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

// Scroll sends a wheel event at the centre of the viewport.
func (p *Page) Scroll(ctx context.Context, dy float64) error {
	var center [2]float64
	if err := p.evaluate(ctx, viewportCenterJS, &center); err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, center[0], center[1]).
			WithDeltaX(0).
			WithDeltaY(dy).
			Do(ctx)
	}))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.evaluate(ctx, contentJS, &html)
	return html, err
}
