// v1
// internal/circuitbreaker/circuitbreaker_test.go
package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testBreaker(cfg Config) *Breaker {
	return New("test", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var errUpstream = errors.New("upstream down")

func failing(ctx context.Context) error { return errUpstream }
func succeeding(ctx context.Context) error { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	b := testBreaker(Config{MaxFailures: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if b.CurrentState() != Closed {
			t.Fatalf("failure %d: state = %v, want closed", i, b.CurrentState())
		}
		if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
			t.Fatalf("failure %d: err = %v", i, err)
		}
	}
	if b.CurrentState() != Open {
		t.Fatalf("state after %d failures = %v, want open", 3, b.CurrentState())
	}

	// Inside the reset window calls fail fast without touching the op.
	called := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("fast-fail err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("open breaker invoked the operation")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(Config{MaxFailures: 2, ResetTimeout: time.Minute})
	ctx := context.Background()

	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v", err)
	}
	if err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("err = %v", err)
	}
	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v", err)
	}
	if b.CurrentState() != Closed {
		t.Error("interleaved success did not reset the consecutive-failure count")
	}
}

func TestProbeAfterResetTimeout(t *testing.T) {
	b := testBreaker(Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v", err)
	}
	if b.CurrentState() != Open {
		t.Fatal("breaker did not open")
	}

	time.Sleep(20 * time.Millisecond)

	// Successful probe closes the breaker.
	if err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if b.CurrentState() != Closed {
		t.Errorf("state after successful probe = %v, want closed", b.CurrentState())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	b := testBreaker(Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("probe err = %v", err)
	}
	if b.CurrentState() != Open {
		t.Errorf("state after failed probe = %v, want open", b.CurrentState())
	}
	if err := b.Execute(ctx, succeeding); !errors.Is(err, ErrOpen) {
		t.Errorf("call after failed probe err = %v, want ErrOpen", err)
	}
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	b := testBreaker(Config{})
	if b.cfg.MaxFailures != 5 || b.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("defaults = %+v", b.cfg)
	}
}
