// api/schemas/booking.go
package schemas

import (
	"fmt"
	"sync"
	"time"
)

// -- Calendar Dates --

// CalendarDate is an immutable day on the civil calendar, independent of any timezone.
type CalendarDate struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// isoLayout is the machine readable form used for structural date attributes.
const isoLayout = "2006-01-02"

// NewCalendarDate builds a date and rejects values that do not exist (e.g. 2025-02-30).
func NewCalendarDate(year int, month time.Month, day int) (CalendarDate, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return CalendarDate{}, fmt.Errorf("invalid calendar date %04d-%02d-%02d", year, int(month), day)
	}
	return CalendarDate{Year: year, Month: month, Day: day}, nil
}

// ParseCalendarDate parses the ISO "YYYY-MM-DD" form.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("failed to parse date '%s': %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf truncates a timestamp to its calendar date in the timestamp's own location.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns midnight UTC of the date.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ISO returns the "YYYY-MM-DD" rendering.
func (d CalendarDate) ISO() string {
	return d.Time().Format(isoLayout)
}

func (d CalendarDate) String() string { return d.ISO() }

// MarshalText renders the ISO form so reports carry "2025-11-01" rather than a struct.
func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.ISO()), nil
}

func (d *CalendarDate) UnmarshalText(b []byte) error {
	parsed, err := ParseCalendarDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Time().Before(other.Time())
}

// IsZero reports whether the date was never set.
func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// DateRange expands the inclusive range between start and end in ascending order.
// A reversed range is swapped, so both original endpoints are always included.
func DateRange(start, end CalendarDate) []CalendarDate {
	if end.Before(start) {
		start, end = end, start
	}
	var dates []CalendarDate
	for d := start; !end.Before(d); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// -- Workflow States --

// WorkflowState is a node of the booking state machine.
type WorkflowState int

const (
	StateHome WorkflowState = iota
	StateConsentPending
	StateSearching
	StateListingOpen
	StateAuthPending
	StateBookingPageOpen
	StateDateSelected
	StateTimeSelected
	StateQuantitySet
	StateConfirmed
	StateFailed
)

var stateNames = map[WorkflowState]string{
	StateHome:            "Home",
	StateConsentPending:  "ConsentPending",
	StateSearching:       "Searching",
	StateListingOpen:     "ListingOpen",
	StateAuthPending:     "AuthPending",
	StateBookingPageOpen: "BookingPageOpen",
	StateDateSelected:    "DateSelected",
	StateTimeSelected:    "TimeSelected",
	StateQuantitySet:     "QuantitySet",
	StateConfirmed:       "Confirmed",
	StateFailed:          "Failed",
}

func (s WorkflowState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("WorkflowState(%d)", int(s))
}

// MarshalText renders the state by name in reports.
func (s WorkflowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *WorkflowState) UnmarshalText(b []byte) error {
	for state, name := range stateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state '%s'", string(b))
}

// -- Attempts --

// BookingAttempt is the outcome of one per-date pass through the booking sub-workflow.
type BookingAttempt struct {
	ID         string        `json:"id"`
	Date       CalendarDate  `json:"date"`
	FinalState WorkflowState `json:"final_state"`
	Errors     []ErrorKind   `json:"errors"`
	// Detail carries the human readable message of each error, aligned with Errors.
	Detail     []string  `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Confirmed reports whether the attempt reached the terminal success state.
func (a BookingAttempt) Confirmed() bool {
	return a.FinalState == StateConfirmed
}

// AttemptLog is the in-memory, append-only record of per-date outcomes.
// Appended attempts are copied so later mutation by the caller cannot alter the log.
type AttemptLog struct {
	mu       sync.RWMutex
	attempts []BookingAttempt
}

// NewAttemptLog creates an empty log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{}
}

// Append records a finished attempt.
func (l *AttemptLog) Append(a BookingAttempt) {
	a.Errors = append([]ErrorKind(nil), a.Errors...)
	a.Detail = append([]string(nil), a.Detail...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

// Attempts returns a snapshot of the recorded attempts in insertion order.
func (l *AttemptLog) Attempts() []BookingAttempt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]BookingAttempt, len(l.attempts))
	copy(out, l.attempts)
	return out
}

// Len returns the number of recorded attempts.
func (l *AttemptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.attempts)
}

// -- Run Report --

// RunOutcome summarises the exit posture of a run.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "SUCCESS"
	OutcomePartial RunOutcome = "PARTIAL"
	OutcomeFailed  RunOutcome = "FAILED"
	OutcomeFatal   RunOutcome = "FATAL"
)

// RunReport is handed to the reporting collaborator at the end of every run.
type RunReport struct {
	RunID      string           `json:"run_id"`
	Query      string           `json:"query"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Requested  []CalendarDate   `json:"requested_dates"`
	Attempts   []BookingAttempt `json:"attempts"`
	// Fatal is set only when the run terminated early.
	Fatal        ErrorKind `json:"fatal,omitempty"`
	FatalMessage string    `json:"fatal_message,omitempty"`
	FinalURL     string    `json:"final_url,omitempty"`
	// Artifacts lists the diagnostic files captured at the end of the run.
	Artifacts []string `json:"artifacts,omitempty"`
}

// Outcome derives the exit posture from the recorded attempts.
func (r *RunReport) Outcome() RunOutcome {
	if r.Fatal != "" {
		return OutcomeFatal
	}
	confirmed := 0
	for _, a := range r.Attempts {
		if a.Confirmed() {
			confirmed++
		}
	}
	switch {
	case len(r.Requested) > 0 && confirmed == len(r.Requested):
		return OutcomeSuccess
	case confirmed > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}
