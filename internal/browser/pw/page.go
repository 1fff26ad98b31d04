// internal/browser/pw/page.go
package pw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

const (
	navigationTimeout = 30 * time.Second
	actionTimeout     = 10 * time.Second
)

const textJS = `n => (n.getAttribute('aria-label') || n.innerText || n.value || n.getAttribute('placeholder') || '').trim()`

const enabledJS = `n => !(n.disabled || n.getAttribute('aria-disabled') === 'true' || n.closest('fieldset[disabled]'))`

// Page wraps a Playwright page.
type Page struct {
	page playwright.Page
	id   string
}

var _ browser.Page = (*Page)(nil)

func (p *Page) ID() string { return p.id }

func status(resp playwright.Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status()
}

func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	var resp playwright.Response
	err := do(ctx, func() error {
		var err error
		resp, err = p.page.Goto(url, playwright.PageGotoOptions{
			Timeout:   timeoutMS(ctx, navigationTimeout),
			WaitUntil: playwright.WaitUntilStateLoad,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return status(resp), nil
}

func (p *Page) Reload(ctx context.Context) (int, error) {
	var resp playwright.Response
	err := do(ctx, func() error {
		var err error
		resp, err = p.page.Reload(playwright.PageReloadOptions{
			Timeout:   timeoutMS(ctx, navigationTimeout),
			WaitUntil: playwright.WaitUntilStateLoad,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return status(resp), nil
}

// QueryAll searches the main frame and every child frame.
func (p *Page) QueryAll(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	limit := q.EffectiveLimit()
	var out []browser.Element
	err := do(ctx, func() error {
		for _, frame := range p.page.Frames() {
			handles, err := frame.QuerySelectorAll(q.Selector)
			if err != nil {
				if frame == p.page.MainFrame() {
					return err
				}
				continue
			}
			for _, h := range handles {
				if len(out) >= limit {
					return nil
				}
				text, _ := h.Evaluate(textJS)
				s, _ := text.(string)
				out = append(out, &element{handle: h, page: p, seq: len(out), text: s})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", q.Selector, err)
	}
	return out, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := do(ctx, func() error {
		var err error
		title, err = p.page.Title()
		return err
	})
	return title, err
}

// Scroll moves the pointer to the viewport centre and sends a wheel event there.
func (p *Page) Scroll(ctx context.Context, dy float64) error {
	return do(ctx, func() error {
		if size := p.page.ViewportSize(); size != nil {
			if err := p.page.Mouse().Move(float64(size.Width)/2, float64(size.Height)/2); err != nil {
				return err
			}
		}
		return p.page.Mouse().Wheel(0, dy)
	})
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := do(ctx, func() error {
		var err error
		buf, err = p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeoutMS(ctx, actionTimeout)})
		return err
	})
	return buf, err
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := do(ctx, func() error {
		var err error
		html, err = p.page.Content()
		return err
	})
	return html, err
}

type element struct {
	handle playwright.ElementHandle
	page   *Page
	seq    int
	text   string
}

var _ browser.Element = (*element)(nil)

func (e *element) Describe() string {
	return fmt.Sprintf("%s/handle-%d(%s)", e.page.id, e.seq, strings.TrimSpace(e.text))
}

func (e *element) Text() string { return e.text }

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := do(ctx, func() error {
		var err error
		visible, err = e.handle.IsVisible()
		return err
	})
	return visible, err
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := do(ctx, func() error {
		res, err := e.handle.Evaluate(enabledJS)
		if err != nil {
			return err
		}
		enabled, _ = res.(bool)
		return nil
	})
	return enabled, err
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return do(ctx, func() error {
		return e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{
			Timeout: timeoutMS(ctx, actionTimeout),
		})
	})
}

// Click relies on Playwright's actionability checks, which fail when the node is covered.
func (e *element) Click(ctx context.Context) error {
	return do(ctx, func() error {
		return e.handle.Click(playwright.ElementHandleClickOptions{Timeout: timeoutMS(ctx, actionTimeout)})
	})
}

func (e *element) DispatchClick(ctx context.Context) error {
	return do(ctx, func() error {
		return e.handle.DispatchEvent("click")
	})
}

func (e *element) Clear(ctx context.Context) error {
	return e.SetValue(ctx, "")
}

func (e *element) TypeRune(ctx context.Context, r rune) error {
	return do(ctx, func() error {
		return e.handle.Type(string(r), playwright.ElementHandleTypeOptions{Timeout: timeoutMS(ctx, actionTimeout)})
	})
}

func (e *element) SetValue(ctx context.Context, value string) error {
	return do(ctx, func() error {
		return e.handle.Fill(value, playwright.ElementHandleFillOptions{
			Timeout: timeoutMS(ctx, actionTimeout),
			Force:   playwright.Bool(true),
		})
	})
}

func (e *element) Press(ctx context.Context, key string) error {
	return do(ctx, func() error {
		return e.handle.Press(key, playwright.ElementHandlePressOptions{Timeout: timeoutMS(ctx, actionTimeout)})
	})
}
