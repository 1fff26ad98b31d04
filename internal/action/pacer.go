// internal/action/pacer.go
package action

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces interactions so the session does not busy-loop and reads as human input.
type Pacer interface {
	// Pause waits between retry attempts.
	Pause(ctx context.Context) error
	// KeyDelay waits between two typed characters.
	KeyDelay(ctx context.Context) error
	// Interact blocks until the next native interaction is allowed.
	Interact(ctx context.Context) error
}

// PacerConfig tunes HumanPacer.
type PacerConfig struct {
	RetryMin time.Duration
	RetryMax time.Duration
	// KeyMean and KeyStdDev describe the normal distribution of inter-key delays.
	KeyMean   time.Duration
	KeyStdDev time.Duration
	// MinSpacing is the minimum gap between native interactions. Zero disables the limiter.
	MinSpacing time.Duration
	// Rng allows deterministic tests. A time seeded source is used when nil.
	Rng *rand.Rand
}

// DefaultPacerConfig returns the pacing used for live sessions.
func DefaultPacerConfig() PacerConfig {
	return PacerConfig{
		RetryMin:   150 * time.Millisecond,
		RetryMax:   450 * time.Millisecond,
		KeyMean:    90 * time.Millisecond,
		KeyStdDev:  35 * time.Millisecond,
		MinSpacing: 120 * time.Millisecond,
	}
}

// HumanPacer draws randomized delays and rate limits native interactions.
type HumanPacer struct {
	mu      sync.Mutex
	cfg     PacerConfig
	rng     *rand.Rand
	limiter *rate.Limiter
}

// NewHumanPacer creates a pacer from cfg.
func NewHumanPacer(cfg PacerConfig) *HumanPacer {
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = cfg.RetryMin
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinSpacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinSpacing), 1)
	}
	return &HumanPacer{cfg: cfg, rng: rng, limiter: limiter}
}

// RetryDelay draws a delay uniformly from [RetryMin, RetryMax].
func (p *HumanPacer) RetryDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	span := int64(p.cfg.RetryMax - p.cfg.RetryMin)
	if span <= 0 {
		return p.cfg.RetryMin
	}
	return p.cfg.RetryMin + time.Duration(p.rng.Int63n(span+1))
}

// KeyInterval draws an inter-key delay from a normal distribution, floored at 10ms.
func (p *HumanPacer) KeyInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := time.Duration(float64(p.cfg.KeyMean) + p.rng.NormFloat64()*float64(p.cfg.KeyStdDev))
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

func (p *HumanPacer) Pause(ctx context.Context) error {
	return sleep(ctx, p.RetryDelay())
}

func (p *HumanPacer) KeyDelay(ctx context.Context) error {
	return sleep(ctx, p.KeyInterval())
}

func (p *HumanPacer) Interact(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoopPacer never waits. It is meant for tests and dry runs.
type NoopPacer struct{}

func (NoopPacer) Pause(ctx context.Context) error    { return ctx.Err() }
func (NoopPacer) KeyDelay(ctx context.Context) error { return ctx.Err() }
func (NoopPacer) Interact(ctx context.Context) error { return ctx.Err() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
