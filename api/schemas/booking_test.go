package schemas_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

func mustDate(t *testing.T, s string) schemas.CalendarDate {
	t.Helper()
	d, err := schemas.ParseCalendarDate(s)
	require.NoError(t, err)
	return d
}

func TestNewCalendarDate(t *testing.T) {
	t.Parallel()

	d, err := schemas.NewCalendarDate(2025, time.November, 3)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-03", d.ISO())

	_, err = schemas.NewCalendarDate(2025, time.February, 30)
	assert.Error(t, err, "non-existent days must be rejected")

	_, err = schemas.ParseCalendarDate("03/11/2025")
	assert.Error(t, err)
}

func TestCalendarDate_Arithmetic(t *testing.T) {
	t.Parallel()

	d := mustDate(t, "2025-12-31")
	assert.Equal(t, "2026-01-01", d.AddDays(1).ISO())
	assert.Equal(t, "2025-12-30", d.AddDays(-1).ISO())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
	assert.True(t, schemas.CalendarDate{}.IsZero())
}

func TestDateRange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		start    string
		end      string
		expected []string
	}{
		{"Ascending", "2025-11-02", "2025-11-05", []string{"2025-11-02", "2025-11-03", "2025-11-04", "2025-11-05"}},
		{"Reversed range is swapped", "2025-11-05", "2025-11-02", []string{"2025-11-02", "2025-11-03", "2025-11-04", "2025-11-05"}},
		{"Single day", "2025-11-02", "2025-11-02", []string{"2025-11-02"}},
		{"Crosses month", "2025-10-30", "2025-11-01", []string{"2025-10-30", "2025-10-31", "2025-11-01"}},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, d := range schemas.DateRange(mustDate(t, tt.start), mustDate(t, tt.end)) {
				got = append(got, d.ISO())
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWorkflowState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "BookingPageOpen", schemas.StateBookingPageOpen.String())
	assert.Equal(t, "Failed", schemas.StateFailed.String())
	assert.Equal(t, "WorkflowState(99)", schemas.WorkflowState(99).String())

	var s schemas.WorkflowState
	require.NoError(t, s.UnmarshalText([]byte("Confirmed")))
	assert.Equal(t, schemas.StateConfirmed, s)
	assert.Error(t, s.UnmarshalText([]byte("Bogus")))
}

func TestAttemptLog(t *testing.T) {
	t.Parallel()

	log := schemas.NewAttemptLog()
	attempt := schemas.BookingAttempt{
		Date:       mustDate(t, "2025-11-02"),
		FinalState: schemas.StateFailed,
		Errors:     []schemas.ErrorKind{schemas.ErrorKindNotFound},
	}
	log.Append(attempt)

	// Mutating the caller's copy must not leak into the log.
	attempt.Errors[0] = schemas.ErrorKindUnknown

	got := log.Attempts()
	require.Len(t, got, 1)
	assert.Equal(t, 1, log.Len())
	assert.Equal(t, schemas.ErrorKindNotFound, got[0].Errors[0])

	// Snapshots are independent of the log as well.
	got[0].FinalState = schemas.StateConfirmed
	assert.Equal(t, schemas.StateFailed, log.Attempts()[0].FinalState)
}

func TestRunReport_Outcome(t *testing.T) {
	t.Parallel()

	dates := []schemas.CalendarDate{mustDate(t, "2025-11-02"), mustDate(t, "2025-11-03")}
	confirmed := schemas.BookingAttempt{FinalState: schemas.StateConfirmed}
	failed := schemas.BookingAttempt{FinalState: schemas.StateFailed}

	testCases := []struct {
		name     string
		report   schemas.RunReport
		expected schemas.RunOutcome
	}{
		{"All confirmed", schemas.RunReport{Requested: dates, Attempts: []schemas.BookingAttempt{confirmed, confirmed}}, schemas.OutcomeSuccess},
		{"Some confirmed", schemas.RunReport{Requested: dates, Attempts: []schemas.BookingAttempt{confirmed, failed}}, schemas.OutcomePartial},
		{"None confirmed", schemas.RunReport{Requested: dates, Attempts: []schemas.BookingAttempt{failed, failed}}, schemas.OutcomeFailed},
		{"Fatal", schemas.RunReport{Requested: dates, Fatal: schemas.ErrorKindAuthRequired}, schemas.OutcomeFatal},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.report.Outcome())
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	stepErr := schemas.NewStepError(schemas.ErrorKindNotInteractable, "select_time", errors.New("click swallowed"))
	wrapped := fmt.Errorf("date 2025-11-02: %w", stepErr)

	assert.Equal(t, schemas.ErrorKindNotInteractable, schemas.KindOf(wrapped))
	assert.Equal(t, schemas.ErrorKindDeadlineExceeded, schemas.KindOf(fmt.Errorf("wait: %w", context.DeadlineExceeded)))
	assert.Equal(t, schemas.ErrorKindUnknown, schemas.KindOf(errors.New("boom")))
	assert.Equal(t, schemas.ErrorKind(""), schemas.KindOf(nil))

	assert.Contains(t, stepErr.Error(), "select_time")
	assert.True(t, schemas.ErrorKindAuthRequired.Fatal())
	assert.False(t, schemas.ErrorKindNotFound.Fatal())
}

func TestPersona_AcceptLanguage(t *testing.T) {
	t.Parallel()
	p := schemas.Persona{Languages: []string{"ar-SA", "ar", "en"}}
	assert.Equal(t, "ar-SA,ar;q=0.9,en;q=0.8", p.AcceptLanguage())
	assert.Equal(t, "", schemas.Persona{}.AcceptLanguage())
}
