package edi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
)

type routerFixture struct {
	router  *Router
	gateway *Gateway
	audit   *store.MemoryAuditStore
}

func setupRouter(t *testing.T, sandbox, confirmed bool, insurers ...domain.InsurerRailConfig) *routerFixture {
	t.Helper()

	registry, err := domain.NewInsurerRegistry(insurers)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	logger := testLogger()
	gateway := NewGateway(GatewayConfig{
		Sandbox:       sandbox,
		AllowPrefixes: []string{"sandbox.", "test.", "mock."},
		DenyDomains:   domain.ProductionDomains(),
	}, logger)
	audit := store.NewMemoryAuditStore()

	router := NewRouter(
		RouterConfig{Sandbox: sandbox, ProductionConfirmed: confirmed, Timeout: 5 * time.Second},
		registry,
		gateway,
		NewMockResponseGenerator("TEST", "sandbox", logger),
		NewConnectorSet(registry, 5*time.Second, logger),
		audit,
		logger,
	)
	return &routerFixture{router: router, gateway: gateway, audit: audit}
}

func TestRouter_SandboxSubmit(t *testing.T) {
	cfg := railConfig(1.0, 0, 0)
	f := setupRouter(t, true, false, cfg)

	claim := testClaim(cfg.Name)
	actor := domain.Actor{OrgID: "org-1", UserID: "user-1"}

	result, err := f.router.Submit(context.Background(), claim, actor, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.ExternalID == "" {
		t.Error("submit returned no external id")
	}
	if !result.Synthetic {
		t.Error("sandbox result must be synthetic")
	}
	if result.Status != domain.ClaimPaid {
		t.Errorf("status = %q, want paid with approval rate 1.0", result.Status)
	}

	if n := len(f.audit.EventsOfType(domain.AuditSubmissionAttempt)); n != 1 {
		t.Errorf("recorded %d attempt events, want 1", n)
	}
	if n := len(f.audit.EventsOfType(domain.AuditSubmissionError)); n != 0 {
		t.Errorf("recorded %d error events, want 0", n)
	}
}

func TestRouter_SandboxBlocksProductionEndpoint(t *testing.T) {
	// An insurer misconfigured with a live production endpoint must be
	// unreachable from sandbox mode.
	cfg := railConfig(1.0, 0, 0)
	cfg.Endpoint = "https://edi.manulife.ca/claims"
	f := setupRouter(t, true, false, cfg)

	claim := testClaim(cfg.Name)
	actor := domain.Actor{OrgID: "org-1", UserID: "user-1"}

	_, err := f.router.Submit(context.Background(), claim, actor, 1)
	if !errors.Is(err, ErrProductionBlocked) {
		t.Fatalf("expected ErrProductionBlocked, got %v", err)
	}

	if n := len(f.gateway.BlockedAttempts()); n != 1 {
		t.Errorf("recorded %d blocked attempts, want 1", n)
	}
	if n := len(f.audit.EventsOfType(domain.AuditSubmissionError)); n != 1 {
		t.Errorf("recorded %d error events, want 1", n)
	}
	if n := len(f.audit.EventsOfType(domain.AuditBlockedCall)); n != 1 {
		t.Errorf("recorded %d blocked-call events, want 1", n)
	}

	// The claim itself must be untouched by a blocked attempt.
	if claim.ExternalID != nil || claim.Status != domain.ClaimPending {
		t.Error("blocked submission modified the claim")
	}
}

func TestRouter_ProductionRequiresConfirmation(t *testing.T) {
	cfg := railConfig(1.0, 0, 0)
	f := setupRouter(t, false, false, cfg)

	_, err := f.router.Submit(context.Background(), testClaim(cfg.Name), domain.Actor{OrgID: "org-1"}, 1)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if errors.Is(err, ErrTransient) {
		t.Error("a missing confirmation must not be retryable")
	}
}

func TestRouter_UnknownInsurer(t *testing.T) {
	f := setupRouter(t, true, false, railConfig(1.0, 0, 0))

	claim := testClaim("no-such-insurer")
	if _, err := f.router.Submit(context.Background(), claim, domain.Actor{}, 1); err == nil {
		t.Fatal("expected error for unknown insurer")
	}
	if n := len(f.audit.EventsOfType(domain.AuditSubmissionAttempt)); n != 0 {
		t.Errorf("recorded %d attempt events for unknown insurer, want 0", n)
	}
}

func TestRouter_Validate(t *testing.T) {
	cfg := railConfig(1.0, 0, 0)
	f := setupRouter(t, true, false, cfg)

	claim := testClaim(cfg.Name)
	claim.ProcedureCodes = []string{"bad"}

	result, err := f.router.Validate(context.Background(), claim, domain.Actor{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result for a malformed dental code")
	}
	if len(result.Errors) == 0 {
		t.Error("invalid result carries no messages")
	}
	if n := len(f.audit.EventsOfType(domain.AuditValidationRun)); n != 1 {
		t.Errorf("recorded %d validation events, want 1", n)
	}
}

func TestRouter_PollStatus(t *testing.T) {
	cfg := railConfig(1.0, 0, 1)
	f := setupRouter(t, true, false, cfg)

	claim := testClaim(cfg.Name)
	externalID := NewTrackingNumber("TEST", claim.Type, time.Now().UTC().Add(-time.Minute))
	claim.ExternalID = &externalID
	claim.Status = domain.ClaimSubmitted

	result, err := f.router.PollStatus(context.Background(), claim, domain.Actor{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if result.Status != domain.ClaimPaid {
		t.Errorf("status = %q, want paid after the processing window", result.Status)
	}
	if n := len(f.audit.EventsOfType(domain.AuditPollAttempt)); n != 1 {
		t.Errorf("recorded %d poll events, want 1", n)
	}
}

func TestRouter_PollWithoutExternalID(t *testing.T) {
	cfg := railConfig(1.0, 0, 0)
	f := setupRouter(t, true, false, cfg)

	if _, err := f.router.PollStatus(context.Background(), testClaim(cfg.Name), domain.Actor{}); err == nil {
		t.Fatal("expected error when polling a claim with no external id")
	}
}
