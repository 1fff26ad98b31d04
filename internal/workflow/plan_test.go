package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/workflow"
)

func TestPlanValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, testPlan(t).Validate())

	tests := []struct {
		name   string
		mutate func(*workflow.Plan)
		want   string
	}{
		{"relative home url", func(p *workflow.Plan) { p.HomeURL = "webook.com" }, "home url"},
		{"blank query", func(p *workflow.Plan) { p.Query = "  " }, "query must not be empty"},
		{"search template without placeholder", func(p *workflow.Plan) { p.SearchURL = "https://webook.com/en/search" }, "{query}"},
		{"missing dates", func(p *workflow.Plan) { p.StartDate = schemas.CalendarDate{} }, "dates are required"},
		{"time label without token", func(p *workflow.Plan) { p.TimeLabel = "evening" }, "HH:MM"},
		{"negative quantity", func(p *workflow.Plan) { p.Quantity = -1 }, "quantity"},
		{"zero retries", func(p *workflow.Plan) { p.Retries = 0 }, "retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan(t)
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPlanValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	p := testPlan(t)
	p.Query = ""
	p.Quantity = -3
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
	assert.Contains(t, err.Error(), "quantity")
}

func TestPlanSearchURLFor(t *testing.T) {
	t.Parallel()
	p := testPlan(t)
	p.SearchURL = "https://webook.com/en/search?q={query}"
	assert.Equal(t, "https://webook.com/en/search?q=Suwaidi+Park", p.SearchURLFor())

	p.Query = "حديقة السويدي"
	assert.Contains(t, p.SearchURLFor(), "q=%D8%AD")
}

func TestPlanDates(t *testing.T) {
	t.Parallel()
	p := testPlan(t)
	p.StartDate, p.EndDate = nov(t, 4), nov(t, 2)
	var got []string
	for _, d := range p.Dates() {
		got = append(got, d.ISO())
	}
	assert.Equal(t, []string{"2025-11-02", "2025-11-03", "2025-11-04"}, got)
}

func TestCredentialsComplete(t *testing.T) {
	t.Parallel()
	assert.False(t, workflow.Credentials{}.Complete())
	assert.False(t, workflow.Credentials{Email: " ", Password: "x"}.Complete())
	assert.True(t, workflow.Credentials{Email: "fan@example.com", Password: "x"}.Complete())
}
