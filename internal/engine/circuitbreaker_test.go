package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestBreaker(t *testing.T) (*InsurerBreaker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewInsurerBreaker(client, logger), mr
}

// tripBreakerAndExpireCooldown opens the circuit for an insurer, then sets
// last_failed_at past the 30s cooldown.
func tripBreakerAndExpireCooldown(t *testing.T, cb *InsurerBreaker, mr *miniredis.Miniredis, insurerID string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, insurerID)
	}

	pastTime := time.Now().Unix() - 31
	mr.HSet(cbKey(insurerID), "last_failed_at", fmt.Sprintf("%d", pastTime))
}

func TestInsurerBreaker_InitialState(t *testing.T) {
	cb, _ := setupTestBreaker(t)
	ctx := context.Background()

	state, allowed := cb.AllowRequest(ctx, "manulife")
	if state != StateClosed {
		t.Errorf("expected state %q, got %q", StateClosed, state)
	}
	if !allowed {
		t.Error("an insurer with no recorded failures should be dispatchable")
	}
}

func TestInsurerBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := setupTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "manulife")
	}

	state, allowed := cb.AllowRequest(ctx, "manulife")
	if state != StateOpen {
		t.Errorf("expected state %q, got %q", StateOpen, state)
	}
	if allowed {
		t.Error("dispatch must be refused while the circuit is open")
	}
}

func TestInsurerBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb, _ := setupTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.RecordFailure(ctx, "manulife")
	}

	state, allowed := cb.AllowRequest(ctx, "manulife")
	if state != StateClosed || !allowed {
		t.Errorf("4 failures should leave the circuit closed, got %q/%v", state, allowed)
	}
}

func TestInsurerBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := setupTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.RecordFailure(ctx, "manulife")
	}
	cb.RecordSuccess(ctx, "manulife")

	state := cb.GetState(ctx, "manulife")
	if state.State != StateClosed {
		t.Errorf("expected state %q after success, got %q", StateClosed, state.State)
	}
	if state.Failures != 0 {
		t.Errorf("expected 0 failures after success, got %d", state.Failures)
	}
}

func TestInsurerBreaker_CooldownTransitionsToHalfOpen(t *testing.T) {
	cb, mr := setupTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "manulife")
	}
	if _, allowed := cb.AllowRequest(ctx, "manulife"); allowed {
		t.Fatal("circuit should be open and blocking")
	}

	pastTime := time.Now().Unix() - 31
	mr.HSet(cbKey("manulife"), "last_failed_at", fmt.Sprintf("%d", pastTime))

	state, allowed := cb.AllowRequest(ctx, "manulife")
	if state != StateHalfOpen {
		t.Errorf("expected state %q after cooldown, got %q", StateHalfOpen, state)
	}
	if !allowed {
		t.Error("half-open should admit a probe dispatch")
	}
}

func TestInsurerBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb, mr := setupTestBreaker(t)
	ctx := context.Background()

	tripBreakerAndExpireCooldown(t, cb, mr, "manulife")
	cb.AllowRequest(ctx, "manulife") // triggers the half-open transition

	cb.RecordSuccess(ctx, "manulife")

	state := cb.GetState(ctx, "manulife")
	if state.State != StateClosed {
		t.Errorf("expected %q after half-open success, got %q", StateClosed, state.State)
	}
}

func TestInsurerBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, mr := setupTestBreaker(t)
	ctx := context.Background()

	tripBreakerAndExpireCooldown(t, cb, mr, "manulife")
	cb.AllowRequest(ctx, "manulife")

	cb.RecordFailure(ctx, "manulife")

	state, allowed := cb.AllowRequest(ctx, "manulife")
	if state != StateOpen || allowed {
		t.Errorf("expected the circuit to re-open after a failed probe, got %q/%v", state, allowed)
	}
}

func TestInsurerBreaker_IsolationBetweenInsurers(t *testing.T) {
	cb, _ := setupTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "manulife")
	}

	state, allowed := cb.AllowRequest(ctx, "sunlife")
	if state != StateClosed || !allowed {
		t.Errorf("one insurer's open circuit must not block another, got %q/%v", state, allowed)
	}
}
