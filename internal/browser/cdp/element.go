// internal/browser/cdp/element.go
package cdp

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

// errObscured is returned by a native click when another node covers the target.
var errObscured = errors.New("click target is obscured by another element")

// keyRunes maps the browser key names onto the runes kb encodes.
var keyRunes = map[string]string{
	browser.KeyEnter:     kb.Enter,
	browser.KeyTab:       kb.Tab,
	browser.KeyEscape:    kb.Escape,
	browser.KeyBackspace: kb.Backspace,
}

type element struct {
	page *Page
	id   string
	text string
	tag  string
}

var _ browser.Element = (*element)(nil)

func (e *element) Describe() string { return fmt.Sprintf("%s#%s", e.tag, e.id) }

func (e *element) Text() string { return e.text }

// exec runs body against the node and decodes its return value into out.
func (e *element) exec(ctx context.Context, body string, arg any, out any) error {
	expr, err := elementCall(e.id, body, arg)
	if err != nil {
		return err
	}
	var res elementResult
	if err := e.page.evaluate(ctx, expr, &res); err != nil {
		return err
	}
	if res.Stale {
		return browser.ErrStaleElement
	}
	if out == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Value, out)
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.exec(ctx, visibleBody, nil, &visible)
	return visible, err
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.exec(ctx, enabledBody, nil, &enabled)
	return enabled, err
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.exec(ctx, scrollBody, nil, nil)
}

// Click presses and releases the left button at the node's centre.
func (e *element) Click(ctx context.Context) error {
	var at point
	if err := e.exec(ctx, centerBody, nil, &at); err != nil {
		return err
	}
	if !at.Hit {
		return errObscured
	}
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, at.X, at.Y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, at.X, at.Y).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, at.X, at.Y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}

func (e *element) DispatchClick(ctx context.Context) error {
	return e.exec(ctx, dispatchClickBody, nil, nil)
}

func (e *element) Clear(ctx context.Context) error {
	return e.exec(ctx, setValueBody, "", nil)
}

func (e *element) SetValue(ctx context.Context, value string) error {
	return e.exec(ctx, setValueBody, value, nil)
}

// sendKeys focuses the node and dispatches the key events encoding s.
func (e *element) sendKeys(ctx context.Context, s string) error {
	if err := e.exec(ctx, focusBody, nil, nil); err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, r := range s {
			for _, ev := range kb.Encode(r) {
				if err := ev.Do(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}))
}

func (e *element) TypeRune(ctx context.Context, r rune) error {
	return e.sendKeys(ctx, string(r))
}

func (e *element) Press(ctx context.Context, key string) error {
	encoded, ok := keyRunes[key]
	if !ok {
		return fmt.Errorf("%w: key %q", browser.ErrUnsupported, key)
	}
	return e.sendKeys(ctx, encoded)
}
