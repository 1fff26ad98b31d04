// internal/browser/errors.go
package browser

import "errors"

var (
	// ErrStaleElement is returned when a handle outlived its document or the node was removed.
	ErrStaleElement = errors.New("element is detached from the document")
	ErrNotVisible   = errors.New("element is not visible")
	ErrNotEnabled   = errors.New("element is disabled")
	// ErrNoBrowsingContext is returned when the session has no usable page.
	ErrNoBrowsingContext = errors.New("no browsing context available")
	// ErrUnsupported marks an optional capability the driver cannot provide.
	ErrUnsupported = errors.New("operation not supported by driver")
)
