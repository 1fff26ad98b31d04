// internal/browser/interfaces.go
package browser

import (
	"context"
)

// Key names understood by Element.Press. They follow the DOM KeyboardEvent.key values.
const (
	KeyEnter     = "Enter"
	KeyTab       = "Tab"
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
)

// DefaultScanLimit bounds how many nodes a single query may return.
const DefaultScanLimit = 250

// Query describes a DOM lookup. Selector is a CSS selector list evaluated against
// the document and every same-origin frame; text filtering is left to the caller.
type Query struct {
	Selector string
	// Limit caps the number of returned elements. Zero means DefaultScanLimit.
	Limit int
}

// EffectiveLimit resolves the zero value to the default scan window.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultScanLimit
	}
	return q.Limit
}

// Element is a transient reference to a DOM node. Handles are only valid until the
// owning page navigates; operations on an outdated handle return ErrStaleElement.
type Element interface {
	// Describe returns a short human readable identification for logs.
	Describe() string
	// Text is the accessible text captured when the element was queried
	// (aria-label, inner text, value or placeholder, whichever is present first).
	Text() string

	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error

	// Click performs a native, input-level click at the element's centre.
	Click(ctx context.Context) error
	// DispatchClick fires a synthetic DOM click event on the element.
	DispatchClick(ctx context.Context) error

	// Clear empties the element's current value.
	Clear(ctx context.Context) error
	// TypeRune sends a single character through key events.
	TypeRune(ctx context.Context, r rune) error
	// SetValue assigns the value directly and fires input and change events.
	SetValue(ctx context.Context, value string) error
	// Press sends a named key (see the Key constants) to the focused element.
	Press(ctx context.Context, key string) error
}

// Page is one browsing context (a tab).
type Page interface {
	ID() string
	// Navigate loads url and returns the HTTP status of the main document,
	// or 0 when the driver could not observe one.
	Navigate(ctx context.Context, url string) (int, error)
	Reload(ctx context.Context) (int, error)
	QueryAll(ctx context.Context, q Query) ([]Element, error)
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Scroll moves the viewport vertically by dy pixels using wheel input.
	Scroll(ctx context.Context, dy float64) error
	Screenshot(ctx context.Context) ([]byte, error)
	Content(ctx context.Context) (string, error)
}

// Browser is a running session. The core never starts or stops the engine process
// itself; drivers hand over a Browser from their Launch functions.
type Browser interface {
	// Pages lists the open browsing contexts, the primary one first.
	Pages(ctx context.Context) ([]Page, error)
	NewPage(ctx context.Context) (Page, error)
	// WatchNewPage reports browsing contexts opened after the call returns.
	// The channel is closed once ctx is done.
	WatchNewPage(ctx context.Context) <-chan Page
	Close() error
}
