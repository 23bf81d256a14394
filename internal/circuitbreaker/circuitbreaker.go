// v1
// internal/circuitbreaker/circuitbreaker.go

// Package circuitbreaker guards calls to the federation API so a flapping
// upstream fails fast instead of tying up import requests.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State enumerates the breaker positions.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen is returned when the breaker refuses a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int
	// ResetTimeout is how long to wait before probing again.
	ResetTimeout time.Duration
}

// DefaultConfig matches the upstream's tolerances: five strikes, half a
// minute in the penalty box.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second}
}

// Breaker tracks consecutive failures of one named dependency.
type Breaker struct {
	name string
	cfg  Config
	log  *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
}

// New builds a closed breaker. Zero-valued config fields fall back to the
// defaults.
func New(name string, cfg Config, log *slog.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	b := &Breaker{name: name, cfg: cfg, log: log, state: Closed}
	b.log.Info("breaker_created",
		slog.String("name", name),
		slog.Int("max_failures", cfg.MaxFailures),
		slog.String("reset_timeout", cfg.ResetTimeout.String()),
	)
	return b
}

// Execute runs op under the breaker. While Open and inside the reset
// window it fails fast with ErrOpen; after the window one probe call is
// allowed through and its outcome decides the next state.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.state == Open {
		if time.Since(b.openedAt) < b.cfg.ResetTimeout {
			since := time.Since(b.openedAt)
			b.mu.Unlock()
			b.log.Warn("breaker_fast_fail", slog.String("name", b.name), slog.String("since_open", since.String()))
			return ErrOpen
		}
		b.state = HalfOpen
		b.log.Info("breaker_probe", slog.String("name", b.name))
	}
	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != Closed {
			b.log.Info("breaker_closed", slog.String("name", b.name))
		}
		b.state = Closed
		b.recentFails = 0
		return nil
	}

	b.recentFails++
	if b.state == HalfOpen || b.recentFails >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = time.Now()
		b.log.Warn("breaker_opened",
			slog.String("name", b.name),
			slog.Int("recent_failures", b.recentFails),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// CurrentState reports the breaker position for diagnostics.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
