// api/schemas/errors.go
package schemas

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a step or a run failed.
type ErrorKind string

const (
	// ErrorKindNotFound means the resolver exhausted every strategy.
	ErrorKindNotFound ErrorKind = "NotFound"
	// ErrorKindNotInteractable means the element was found but could not be clicked or filled.
	ErrorKindNotInteractable ErrorKind = "NotInteractable"
	// ErrorKindNavigationUnhealthy means the page stayed not-found after the full recovery ladder.
	ErrorKindNavigationUnhealthy ErrorKind = "NavigationUnhealthy"
	// ErrorKindAuthRequired means a login surface was detected but credentials are missing.
	ErrorKindAuthRequired     ErrorKind = "AuthRequired"
	ErrorKindDeadlineExceeded ErrorKind = "DeadlineExceeded"
	// ErrorKindCanceled means the run was stopped from outside, for example by a signal.
	ErrorKindCanceled ErrorKind = "Canceled"
	// ErrorKindAmbiguousNavigation means neither a new browsing context nor a same-context transition was observed.
	ErrorKindAmbiguousNavigation ErrorKind = "AmbiguousNavigation"
	ErrorKindUnknown             ErrorKind = "Unknown"
)

// Fatal reports whether the kind stops the whole run rather than a single date.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrorKindNavigationUnhealthy, ErrorKindAuthRequired:
		return true
	default:
		return false
	}
}

// StepError ties a failure classification to the workflow step that produced it.
type StepError struct {
	Kind ErrorKind
	Step string
	Err  error
}

// NewStepError builds a StepError. err may be nil.
func NewStepError(kind ErrorKind, step string, err error) *StepError {
	return &StepError{Kind: kind, Step: step, Err: err}
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// KindOf classifies an arbitrary error. Context expiry maps to DeadlineExceeded
// even when it surfaces unwrapped from a driver.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorKindDeadlineExceeded
	}
	return ErrorKindUnknown
}
