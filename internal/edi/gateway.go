package edi

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/google/uuid"
)

// GatewayConfig tunes the network isolation gateway.
type GatewayConfig struct {
	Sandbox       bool
	Strict        bool
	AllowPrefixes []string
	DenyDomains   []string
	Latency       time.Duration
	Jitter        time.Duration
	ErrorRate     float64
}

// Gateway wraps all outbound insurer calls. In sandbox mode it makes
// production insurer domains structurally unreachable, simulates network
// latency and transport failures, and records every blocked attempt.
type Gateway struct {
	cfg    GatewayConfig
	logger *slog.Logger

	mu      sync.Mutex
	blocked []domain.BlockedAttempt
	rng     *rand.Rand
}

func NewGateway(cfg GatewayConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CheckHost applies the isolation decision to a candidate hostname:
//  1. outside sandbox mode, allow unconditionally;
//  2. allow-patterns and loopback are always permitted;
//  3. a deny-listed production domain (or subdomain) blocks the call,
//     records a BlockedAttempt, and aborts with ErrProductionBlocked;
//  4. anything else is allowed unless strict isolation is on.
func (g *Gateway) CheckHost(host, method, url string, actor domain.Actor) error {
	if !g.cfg.Sandbox {
		return nil
	}

	host = strings.ToLower(host)

	if g.hostAllowed(host) {
		return nil
	}

	if g.hostDenied(host) {
		g.recordBlocked(method, url, actor)
		return fmt.Errorf("host %s: %w", host, ErrProductionBlocked)
	}

	if g.cfg.Strict {
		g.recordBlocked(method, url, actor)
		return fmt.Errorf("host %s not allow-listed under strict isolation: %w", host, ErrProductionBlocked)
	}

	return nil
}

func (g *Gateway) hostAllowed(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	for _, prefix := range g.cfg.AllowPrefixes {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

func (g *Gateway) hostDenied(host string) bool {
	for _, d := range g.cfg.DenyDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (g *Gateway) recordBlocked(method, url string, actor domain.Actor) {
	attempt := domain.BlockedAttempt{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		URL:       url,
		Method:    method,
		OrgID:     actor.OrgID,
		UserID:    actor.UserID,
	}

	g.mu.Lock()
	g.blocked = append(g.blocked, attempt)
	g.mu.Unlock()

	g.logger.Warn("blocked outbound call to production domain",
		"url", url,
		"method", method,
		"org_id", actor.OrgID,
		"user_id", actor.UserID,
	)
}

// Simulate imposes the configured latency (plus jitter) and, at the
// configured error rate, injects a synthetic transport failure. Exercises the
// retry path even when upstream is healthy.
func (g *Gateway) Simulate(ctx context.Context) error {
	g.mu.Lock()
	delay := g.cfg.Latency
	if g.cfg.Jitter > 0 {
		delay += time.Duration(g.rng.Int63n(int64(g.cfg.Jitter)))
	}
	fail := g.cfg.ErrorRate > 0 && g.rng.Float64() < g.cfg.ErrorRate
	g.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("simulated network wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if fail {
		return fmt.Errorf("simulated network failure: %w", ErrTransient)
	}
	return nil
}

// BlockedAttempts returns a copy of the blocked-attempt log, newest last.
func (g *Gateway) BlockedAttempts() []domain.BlockedAttempt {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]domain.BlockedAttempt, len(g.blocked))
	copy(out, g.blocked)
	return out
}

// ClearBlockedAttempts empties the blocked-attempt log and returns how many
// entries were removed. Administrative operation; the audit trail keeps the
// durable copy.
func (g *Gateway) ClearBlockedAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.blocked)
	g.blocked = nil
	return n
}
