// File: internal/config/pacing_config.go
// PacingConfig holds the tunables of the interaction pacer: retry jitter, the
// distribution of inter-key delays, and the minimum spacing between native input
// events. Loaded under the "pacing" key like every other section.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// PacingConfig controls the human-like timing of clicks and keystrokes.
type PacingConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	RetryMin   time.Duration `mapstructure:"retry_min" yaml:"retry_min"`
	RetryMax   time.Duration `mapstructure:"retry_max" yaml:"retry_max"`
	KeyMean    time.Duration `mapstructure:"key_mean" yaml:"key_mean"`
	KeyStdDev  time.Duration `mapstructure:"key_std_dev" yaml:"key_std_dev"`
	MinSpacing time.Duration `mapstructure:"min_spacing" yaml:"min_spacing"`
}

func setPacingDefaults(v *viper.Viper) {
	v.SetDefault("pacing.enabled", true)
	v.SetDefault("pacing.retry_min", "150ms")
	v.SetDefault("pacing.retry_max", "450ms")
	v.SetDefault("pacing.key_mean", "90ms")
	v.SetDefault("pacing.key_std_dev", "35ms")
	v.SetDefault("pacing.min_spacing", "120ms")
}

// Validate rejects inverted or negative ranges.
func (p PacingConfig) Validate() error {
	if p.RetryMin < 0 || p.KeyMean < 0 || p.KeyStdDev < 0 || p.MinSpacing < 0 {
		return errors.New("pacing durations must not be negative")
	}
	if p.RetryMax < p.RetryMin {
		return errors.New("pacing.retry_max must not be less than pacing.retry_min")
	}
	return nil
}
