// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "lancet", cfg.Logger.ServiceName)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, schemas.DefaultPersona.UserAgent, cfg.Browser.Persona.UserAgent)
	assert.Equal(t, []string{"en-US", "en", "ar-SA", "ar"}, cfg.Browser.Persona.Languages)
	assert.Equal(t, 750*time.Millisecond, cfg.Navigation.InitialBackoff)
	assert.Equal(t, 3, cfg.Navigation.MaxReloads)
	assert.Equal(t, 12*time.Second, cfg.Timeouts.StepBudget)
	assert.Equal(t, 1, cfg.Booking.Quantity)
	assert.Equal(t, 6, cfg.Booking.ResetDecrements)
	assert.Equal(t, "json", cfg.Reporting.Format)
	assert.True(t, cfg.Pacing.Enabled)
	assert.Empty(t, cfg.Database.URL)

	require.NoError(t, cfg.Validate(), "defaults must be valid on their own")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"playwright driver", func(c *Config) { c.Browser.Driver = DriverPlaywright }, ""},
		{"unknown driver", func(c *Config) { c.Browser.Driver = "selenium" }, "browser.driver must be"},
		{"zero retries", func(c *Config) { c.Timeouts.Retries = 0 }, "timeouts.retries must be at least 1"},
		{"zero step budget", func(c *Config) { c.Timeouts.StepBudget = 0 }, "must be positive durations"},
		{"negative reloads", func(c *Config) { c.Navigation.MaxReloads = -1 }, "navigation.max_reloads"},
		{"inverted pacing", func(c *Config) { c.Pacing.RetryMax = time.Millisecond }, "pacing.retry_max"},
		{"unknown report format", func(c *Config) { c.Reporting.Format = "xml" }, "reporting.format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func bookingConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Booking.StartDate = "2025-11-03"
	cfg.Booking.EndDate = "2025-11-01"
	cfg.Booking.TimeLabel = "18:00 - 23:00"
	cfg.Booking.Quantity = 2
	return cfg
}

func TestValidateBooking(t *testing.T) {
	require.NoError(t, bookingConfig().ValidateBooking())

	cfg := bookingConfig()
	cfg.Booking.StartDate = "2025-02-30"
	cfg.Booking.TimeLabel = "evening"
	cfg.Target.Query = "  "
	err := cfg.ValidateBooking()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking.start_date")
	assert.Contains(t, err.Error(), "booking.time_label")
	assert.Contains(t, err.Error(), "target.query is required")
}

// -- Conversion Tests --

func TestPlan(t *testing.T) {
	cfg := bookingConfig()
	cfg.Credentials.Email = "guest@example.com"
	cfg.Credentials.Password = "secret"

	plan, err := cfg.Plan()
	require.NoError(t, err)
	require.NoError(t, plan.Validate())

	assert.Equal(t, "https://webook.com/en", plan.HomeURL)
	assert.Equal(t, "Suwaidi Park", plan.Query)
	assert.Equal(t, 2, plan.Quantity)
	assert.True(t, plan.Credentials.Complete())
	assert.Equal(t, 15*time.Second, plan.NavigationBudget)

	dates := plan.Dates()
	require.Len(t, dates, 3)
	assert.Equal(t, "2025-11-01", dates[0].ISO(), "a reversed range is booked in ascending order")
	assert.Equal(t, "2025-11-03", dates[2].ISO())
}

func TestPlan_SingleDate(t *testing.T) {
	cfg := bookingConfig()
	cfg.Booking.EndDate = ""

	plan, err := cfg.Plan()
	require.NoError(t, err)
	assert.Equal(t, plan.StartDate, plan.EndDate)
	assert.Len(t, plan.Dates(), 1)
}

func TestPlan_Invalid(t *testing.T) {
	cfg := bookingConfig()
	cfg.Booking.StartDate = ""
	_, err := cfg.Plan()
	assert.ErrorContains(t, err, "invalid booking configuration")
}

func TestGuardConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Navigation.InitialBackoff = 10 * time.Millisecond
	cfg.Navigation.Multiplier = 0.5
	cfg.Navigation.NotFoundMarkers = []string{"gone"}

	gc := cfg.GuardConfig()
	assert.Equal(t, 10*time.Millisecond, gc.InitialBackoff)
	assert.Equal(t, 2.0, gc.Multiplier, "a multiplier below one keeps the default")
	assert.Equal(t, []string{"gone"}, gc.Markers)
}

func TestPacer(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.IsType(t, &action.HumanPacer{}, cfg.Pacer())

	cfg.Pacing.Enabled = false
	assert.Equal(t, action.NoopPacer{}, cfg.Pacer())
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
browser:
  driver: playwright
  headless: true
target:
  query: "Boulevard World"
booking:
  start_date: "2025-12-01"
  time_label: "16:00"
  quantity: 4
timeouts:
  step_budget: 20s
reporting:
  format: text
  artifacts_dir: ~/lancet-artifacts
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, DriverPlaywright, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "Boulevard World", cfg.Target.Query)
	assert.Equal(t, 4, cfg.Booking.Quantity)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.StepBudget)
	assert.Equal(t, "text", cfg.Reporting.Format)
	assert.NotContains(t, cfg.Reporting.ArtifactsDir, "~", "home relative paths are expanded")
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Timeouts.Retries)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.driver", "webkit2")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBindEnv_Credentials(t *testing.T) {
	t.Run("fallback variables", func(t *testing.T) {
		t.Setenv("WEBOOK_EMAIL", "fallback@example.com")
		t.Setenv("WEBOOK_PASSWORD", "fallback-pass")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "fallback@example.com", cfg.Credentials.Email)
		assert.Equal(t, "fallback-pass", cfg.Credentials.Password)
	})

	t.Run("prefixed variable wins", func(t *testing.T) {
		t.Setenv("WEBOOK_EMAIL", "fallback@example.com")
		t.Setenv("LANCET_CREDENTIALS_EMAIL", "primary@example.com")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "primary@example.com", cfg.Credentials.Email)
	})

	t.Run("nested keys", func(t *testing.T) {
		t.Setenv("LANCET_BOOKING_QUANTITY", "3")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Booking.Quantity)
	})
}
