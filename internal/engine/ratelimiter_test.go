package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLimiter(t *testing.T) (*InsurerLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewInsurerLimiter(client, logger), mr
}

func TestInsurerLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "manulife", 5) {
			t.Errorf("dispatch %d should be admitted (limit=5)", i+1)
		}
	}
}

func TestInsurerLimiter_DefersOverLimit(t *testing.T) {
	rl, _ := setupTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "manulife", 3)
	}

	if rl.Allow(ctx, "manulife", 3) {
		t.Error("dispatch over the window limit should be deferred")
	}
}

func TestInsurerLimiter_ZeroLimitMeansUnlimited(t *testing.T) {
	rl, _ := setupTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if !rl.Allow(ctx, "manulife", 0) {
			t.Errorf("dispatch %d should be admitted with limit=0", i+1)
		}
	}
}

func TestInsurerLimiter_IsolationBetweenInsurers(t *testing.T) {
	rl, _ := setupTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "manulife", 2)
	}

	if rl.Allow(ctx, "manulife", 2) {
		t.Error("manulife should be over its window")
	}
	if !rl.Allow(ctx, "sunlife", 2) {
		t.Error("sunlife should be unaffected, windows are per-insurer")
	}
}
