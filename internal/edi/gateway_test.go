package edi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

func sandboxGateway(strict bool) *Gateway {
	return NewGateway(GatewayConfig{
		Sandbox:       true,
		Strict:        strict,
		AllowPrefixes: []string{"sandbox.", "test.", "mock.", "dev.", "staging."},
		DenyDomains:   domain.ProductionDomains(),
	}, testLogger())
}

func TestGateway_CheckHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		strict  bool
		blocked bool
	}{
		{name: "production domain", host: "manulife.ca", blocked: true},
		{name: "production subdomain", host: "edi.sunlife.ca", blocked: true},
		{name: "deep production subdomain", host: "api.claims.canadalife.com", blocked: true},
		{name: "sandbox prefix on production domain", host: "sandbox.manulife.ca", blocked: false},
		{name: "test prefix", host: "test.greenshield.ca", blocked: false},
		{name: "localhost", host: "localhost", blocked: false},
		{name: "localhost subdomain", host: "insurer.localhost", blocked: false},
		{name: "loopback ip", host: "127.0.0.1", blocked: false},
		{name: "unknown host relaxed", host: "example.org", blocked: false},
		{name: "unknown host strict", host: "example.org", strict: true, blocked: true},
		{name: "loopback under strict", host: "127.0.0.1", strict: true, blocked: false},
		{name: "uppercase production domain", host: "MANULIFE.CA", blocked: true},
		{name: "similar but distinct domain", host: "notmanulife.ca", blocked: false},
	}

	actor := domain.Actor{OrgID: "org-1", UserID: "user-1"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sandboxGateway(tt.strict)
			err := g.CheckHost(tt.host, http.MethodPost, "https://"+tt.host+"/edi", actor)

			if tt.blocked {
				if !errors.Is(err, ErrProductionBlocked) {
					t.Fatalf("expected ErrProductionBlocked, got %v", err)
				}
				if n := len(g.BlockedAttempts()); n != 1 {
					t.Errorf("recorded %d blocked attempts, want 1", n)
				}
			} else {
				if err != nil {
					t.Fatalf("expected host to be allowed, got %v", err)
				}
				if n := len(g.BlockedAttempts()); n != 0 {
					t.Errorf("recorded %d blocked attempts, want 0", n)
				}
			}
		})
	}
}

func TestGateway_ProductionModeAllowsEverything(t *testing.T) {
	g := NewGateway(GatewayConfig{
		Sandbox:     false,
		DenyDomains: domain.ProductionDomains(),
	}, testLogger())

	err := g.CheckHost("manulife.ca", http.MethodPost, "https://manulife.ca/edi", domain.Actor{})
	if err != nil {
		t.Fatalf("production mode must not block: %v", err)
	}
	if len(g.BlockedAttempts()) != 0 {
		t.Error("production mode should not record blocked attempts")
	}
}

func TestGateway_BlockedAttemptAttribution(t *testing.T) {
	g := sandboxGateway(false)
	actor := domain.Actor{OrgID: "org-9", UserID: "user-7"}

	_ = g.CheckHost("sunlife.ca", http.MethodGet, "https://sunlife.ca/claims/123", actor)

	attempts := g.BlockedAttempts()
	if len(attempts) != 1 {
		t.Fatalf("recorded %d attempts, want 1", len(attempts))
	}
	got := attempts[0]
	if got.URL != "https://sunlife.ca/claims/123" || got.Method != http.MethodGet {
		t.Errorf("attempt = %+v, wrong url or method", got)
	}
	if got.OrgID != "org-9" || got.UserID != "user-7" {
		t.Errorf("attempt attribution = %s/%s, want org-9/user-7", got.OrgID, got.UserID)
	}
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Error("attempt missing id or timestamp")
	}
}

func TestGateway_ClearBlockedAttempts(t *testing.T) {
	g := sandboxGateway(false)
	actor := domain.Actor{OrgID: "org-1", UserID: "user-1"}

	_ = g.CheckHost("manulife.ca", http.MethodPost, "https://manulife.ca/edi", actor)
	_ = g.CheckHost("sunlife.ca", http.MethodPost, "https://sunlife.ca/edi", actor)

	if n := g.ClearBlockedAttempts(); n != 2 {
		t.Errorf("cleared %d attempts, want 2", n)
	}
	if len(g.BlockedAttempts()) != 0 {
		t.Error("log not empty after clear")
	}
}

func TestGateway_SimulateErrorInjection(t *testing.T) {
	g := NewGateway(GatewayConfig{Sandbox: true, ErrorRate: 1.0}, testLogger())

	err := g.Simulate(context.Background())
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestGateway_SimulateCleanPath(t *testing.T) {
	g := NewGateway(GatewayConfig{Sandbox: true, ErrorRate: 0}, testLogger())

	if err := g.Simulate(context.Background()); err != nil {
		t.Fatalf("expected clean pass, got %v", err)
	}
}

func TestGateway_SimulateHonorsContext(t *testing.T) {
	g := NewGateway(GatewayConfig{Sandbox: true, Latency: time.Minute}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := g.Simulate(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("simulate did not abort on context cancellation")
	}
}
