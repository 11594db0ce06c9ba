package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// InsurerBreaker is a per-insurer circuit breaker over Redis. When an insurer
// endpoint keeps failing, the queue stops burning retry attempts against it
// until the cooldown elapses.
//
// State transitions: closed → open → half-open → closed.
type InsurerBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
}

// BreakerState is the externally visible state of one insurer's circuit.
type BreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewInsurerBreaker(redisClient *redis.Client, logger *slog.Logger) *InsurerBreaker {
	return &InsurerBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
	}
}

func cbKey(insurerID string) string {
	return fmt.Sprintf("cb:insurer:%s", insurerID)
}

// AllowRequest checks whether a dispatch to this insurer may proceed.
func (cb *InsurerBreaker) AllowRequest(ctx context.Context, insurerID string) (string, bool) {
	key := cbKey(insurerID)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StateClosed, true
	}

	state := data["state"]
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	switch state {
	case StateOpen:
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
			cb.logger.Info("insurer circuit half-open", "insurer_id", insurerID)
			return StateHalfOpen, true
		}
		return StateOpen, false

	case StateHalfOpen:
		return StateHalfOpen, true

	default:
		return StateClosed, true
	}
}

// RecordSuccess resets the circuit to closed.
func (cb *InsurerBreaker) RecordSuccess(ctx context.Context, insurerID string) {
	key := cbKey(insurerID)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	cb.redisClient.HSet(ctx, key,
		"state", StateClosed,
		"failures", 0,
	)

	if state == StateHalfOpen {
		cb.logger.Info("insurer circuit closed (recovered)", "insurer_id", insurerID)
	}
}

// RecordFailure counts a failed dispatch and opens the circuit at threshold.
func (cb *InsurerBreaker) RecordFailure(ctx context.Context, insurerID string) {
	key := cbKey(insurerID)

	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record breaker failure", "error", err, "insurer_id", insurerID)
		return
	}

	cb.redisClient.HSet(ctx, key, "last_failed_at", time.Now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	if state == StateHalfOpen {
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("insurer circuit re-opened (half-open test failed)", "insurer_id", insurerID)
	} else if failures >= int64(cb.failureThreshold) {
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("insurer circuit opened",
			"insurer_id", insurerID,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	} else if state == "" {
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// GetState returns the current circuit state for an insurer.
func (cb *InsurerBreaker) GetState(ctx context.Context, insurerID string) BreakerState {
	key := cbKey(insurerID)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return BreakerState{State: StateClosed, Failures: 0}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	if state == StateOpen {
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			state = StateHalfOpen
		}
	}

	result := BreakerState{
		State:    state,
		Failures: failures,
	}

	if ts, ok := data["last_failed_at"]; ok && ts != "" {
		lastFailed, _ := strconv.ParseInt(ts, 10, 64)
		if lastFailed > 0 {
			result.LastFailedAt = time.Unix(lastFailed, 0).Format(time.RFC3339)
		}
	}

	return result
}
