// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
)

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Pacing      PacingConfig      `mapstructure:"pacing" yaml:"pacing"`
	Navigation  NavigationConfig  `mapstructure:"navigation" yaml:"navigation"`
	Target      TargetConfig      `mapstructure:"target" yaml:"target"`
	Booking     BookingConfig     `mapstructure:"booking" yaml:"booking"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"-"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts" yaml:"timeouts"`
	Reporting   ReportingConfig   `mapstructure:"reporting" yaml:"reporting"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the history database connection. An empty URL disables history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig selects and tunes the browser driver.
type BrowserConfig struct {
	Driver      string          `mapstructure:"driver" yaml:"driver"`
	Headless    bool            `mapstructure:"headless" yaml:"headless"`
	ExecPath    string          `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir string          `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args        []string        `mapstructure:"args" yaml:"args"`
	Stealth     bool            `mapstructure:"stealth" yaml:"stealth"`
	Debug       bool            `mapstructure:"debug" yaml:"debug"`
	Install     bool            `mapstructure:"install" yaml:"install"`
	Persona     schemas.Persona `mapstructure:"persona" yaml:"persona"`
}

// NavigationConfig tunes the recovery ladder of the navigation guard.
type NavigationConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier" yaml:"multiplier"`
	MaxReloads     int           `mapstructure:"max_reloads" yaml:"max_reloads"`
	Budget         time.Duration `mapstructure:"budget" yaml:"budget"`
	// NotFoundMarkers replaces the built-in marker list when set.
	NotFoundMarkers []string `mapstructure:"not_found_markers" yaml:"not_found_markers"`
}

// TargetConfig locates the event on the ticketing site.
type TargetConfig struct {
	HomeURL    string `mapstructure:"home_url" yaml:"home_url"`
	Query      string `mapstructure:"query" yaml:"query"`
	SearchURL  string `mapstructure:"search_url" yaml:"search_url"`
	BookingURL string `mapstructure:"booking_url" yaml:"booking_url"`
}

// BookingConfig describes what to book.
type BookingConfig struct {
	StartDate       string `mapstructure:"start_date" yaml:"start_date"`
	EndDate         string `mapstructure:"end_date" yaml:"end_date"`
	TimeLabel       string `mapstructure:"time_label" yaml:"time_label"`
	Quantity        int    `mapstructure:"quantity" yaml:"quantity"`
	ResetDecrements int    `mapstructure:"reset_decrements" yaml:"reset_decrements"`
}

// CredentialsConfig is never written back to disk.
type CredentialsConfig struct {
	Email    string `mapstructure:"email" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// TimeoutConfig bounds the run and its steps.
type TimeoutConfig struct {
	Deadline    time.Duration `mapstructure:"deadline" yaml:"deadline"`
	StepBudget  time.Duration `mapstructure:"step_budget" yaml:"step_budget"`
	ProbeBudget time.Duration `mapstructure:"probe_budget" yaml:"probe_budget"`
	PerTry      time.Duration `mapstructure:"per_try" yaml:"per_try"`
	Retries     int           `mapstructure:"retries" yaml:"retries"`
	TermsScroll float64       `mapstructure:"terms_scroll" yaml:"terms_scroll"`
}

// ReportingConfig controls the run report and the final artifacts.
type ReportingConfig struct {
	Format       string `mapstructure:"format" yaml:"format"`
	Output       string `mapstructure:"output" yaml:"output"`
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	persona := schemas.DefaultPersona
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.install", false)
	v.SetDefault("browser.persona.user_agent", persona.UserAgent)
	v.SetDefault("browser.persona.platform", persona.Platform)
	v.SetDefault("browser.persona.languages", persona.Languages)
	v.SetDefault("browser.persona.width", persona.Width)
	v.SetDefault("browser.persona.height", persona.Height)
	v.SetDefault("browser.persona.mobile", persona.Mobile)
	v.SetDefault("browser.persona.timezone", persona.Timezone)
	v.SetDefault("browser.persona.locale", persona.Locale)

	setPacingDefaults(v)

	// -- Navigation --
	v.SetDefault("navigation.initial_backoff", "750ms")
	v.SetDefault("navigation.max_backoff", "6s")
	v.SetDefault("navigation.multiplier", 2.0)
	v.SetDefault("navigation.max_reloads", 3)
	v.SetDefault("navigation.budget", "15s")

	// -- Target --
	v.SetDefault("target.home_url", "https://webook.com/en")
	v.SetDefault("target.query", "Suwaidi Park")
	v.SetDefault("target.search_url", "")
	v.SetDefault("target.booking_url", "")

	// -- Booking --
	v.SetDefault("booking.time_label", "")
	v.SetDefault("booking.quantity", 1)
	v.SetDefault("booking.reset_decrements", 6)

	// -- Timeouts --
	v.SetDefault("timeouts.deadline", "0s")
	v.SetDefault("timeouts.step_budget", "12s")
	v.SetDefault("timeouts.probe_budget", "3s")
	v.SetDefault("timeouts.per_try", "5s")
	v.SetDefault("timeouts.retries", 3)
	v.SetDefault("timeouts.terms_scroll", 1600.0)

	// -- Reporting --
	v.SetDefault("reporting.format", "json")
	v.SetDefault("reporting.output", "stdout")
	v.SetDefault("reporting.artifacts_dir", "./artifacts")
}

// BindEnv wires the LANCET_ prefix and the credential fallbacks onto v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LANCET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The prefixed variable wins when both are present.
	_ = v.BindEnv("credentials.email", "LANCET_CREDENTIALS_EMAIL", "WEBOOK_EMAIL")
	_ = v.BindEnv("credentials.password", "LANCET_CREDENTIALS_PASSWORD", "WEBOOK_PASSWORD")
	_ = v.BindEnv("database.url", "LANCET_DATABASE_URL", "DATABASE_URL")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Reporting.ArtifactsDir, &c.Browser.UserDataDir, &c.Browser.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
		*p = expanded
	}
	if c.Reporting.Output != "" && c.Reporting.Output != "stdout" {
		expanded, err := homedir.Expand(c.Reporting.Output)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", c.Reporting.Output, err)
		}
		c.Reporting.Output = expanded
	}
	return nil
}

// Validate checks the settings every command relies on. Booking specific fields are
// checked by ValidateBooking so diagnostic commands work without a booking target.
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.Browser.Driver)
	}
	if c.Timeouts.Retries < 1 {
		return fmt.Errorf("timeouts.retries must be at least 1")
	}
	if c.Timeouts.StepBudget <= 0 || c.Timeouts.PerTry <= 0 {
		return fmt.Errorf("timeouts.step_budget and timeouts.per_try must be positive durations")
	}
	if c.Navigation.MaxReloads < 0 {
		return fmt.Errorf("navigation.max_reloads must not be negative")
	}
	if err := c.Pacing.Validate(); err != nil {
		return fmt.Errorf("pacing configuration invalid: %w", err)
	}
	switch c.Reporting.Format {
	case "json", "text":
	default:
		return fmt.Errorf("reporting.format must be json or text, got %q", c.Reporting.Format)
	}
	return nil
}

// ValidateBooking checks the fields a booking run needs.
func (c *Config) ValidateBooking() error {
	var errs []error
	if _, err := url.ParseRequestURI(c.Target.HomeURL); err != nil {
		errs = append(errs, fmt.Errorf("target.home_url: %w", err))
	}
	if strings.TrimSpace(c.Target.Query) == "" {
		errs = append(errs, errors.New("target.query is required"))
	}
	if _, err := schemas.ParseCalendarDate(c.Booking.StartDate); err != nil {
		errs = append(errs, fmt.Errorf("booking.start_date: %w", err))
	}
	if c.Booking.EndDate != "" {
		if _, err := schemas.ParseCalendarDate(c.Booking.EndDate); err != nil {
			errs = append(errs, fmt.Errorf("booking.end_date: %w", err))
		}
	}
	if _, err := locale.TimeVariants(c.Booking.TimeLabel); err != nil {
		errs = append(errs, fmt.Errorf("booking.time_label: %w", err))
	}
	if c.Booking.Quantity < 0 {
		errs = append(errs, errors.New("booking.quantity must not be negative"))
	}
	if c.Booking.ResetDecrements < 0 {
		errs = append(errs, errors.New("booking.reset_decrements must not be negative"))
	}
	return errors.Join(errs...)
}

// Hostname is used to label runs in logs.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
