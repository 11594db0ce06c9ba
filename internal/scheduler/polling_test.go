package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
)

type pollerFixture struct {
	poller *StatusPoller
	claims *store.MemoryClaimStore
	audit  *store.MemoryAuditStore
}

func setupPoller(t *testing.T, approval float64, processingMs int) *pollerFixture {
	t.Helper()

	logger := testLogger()
	registry, err := domain.NewInsurerRegistry([]domain.InsurerRailConfig{{
		Name:                "acme-dental",
		Rail:                domain.RailDentalNetwork,
		Endpoint:            "https://sandbox.acme-dental.example/edi",
		ProcessingTimeMs:    processingMs,
		ApprovalRate:        approval,
		InfoRequestRate:     0,
		SupportedClaimTypes: []domain.ClaimType{domain.ClaimTypeClaim},
	}})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	gateway := edi.NewGateway(edi.GatewayConfig{
		Sandbox:       true,
		AllowPrefixes: []string{"sandbox."},
		DenyDomains:   domain.ProductionDomains(),
	}, logger)
	claims := store.NewMemoryClaimStore()
	audit := store.NewMemoryAuditStore()

	router := edi.NewRouter(
		edi.RouterConfig{Sandbox: true, Timeout: 5 * time.Second},
		registry,
		gateway,
		edi.NewMockResponseGenerator("TEST", "sandbox", logger),
		edi.NewConnectorSet(registry, 5*time.Second, logger),
		audit,
		logger,
	)

	return &pollerFixture{
		poller: NewStatusPoller(registry, router, claims, audit, logger),
		claims: claims,
		audit:  audit,
	}
}

func seedSubmitted(t *testing.T, claims *store.MemoryClaimStore, id string, issued time.Time) *domain.Claim {
	t.Helper()
	externalID := edi.NewTrackingNumber("TEST", domain.ClaimTypeClaim, issued)
	claim := &domain.Claim{
		ID:             id,
		OrgID:          "org-1",
		InsurerID:      "acme-dental",
		Type:           domain.ClaimTypeClaim,
		AmountCents:    10_000,
		ProcedureCodes: []string{"21211"},
		Status:         domain.ClaimSubmitted,
		ExternalID:     &externalID,
	}
	if err := claims.CreateClaim(context.Background(), claim); err != nil {
		t.Fatalf("seeding claim: %v", err)
	}
	return claim
}

func TestStatusPoller_AppliesFinalOutcome(t *testing.T) {
	f := setupPoller(t, 1.0, 1)
	ctx := context.Background()

	claim := seedSubmitted(t, f.claims, "claim-1", time.Now().UTC().Add(-time.Minute))

	if err := f.poller.PollRail(domain.RailDentalNetwork)(ctx); err != nil {
		t.Fatalf("poll sweep failed: %v", err)
	}

	got, _ := f.claims.GetClaim(ctx, claim.ID)
	if got.Status != domain.ClaimPaid {
		t.Fatalf("status = %q, want paid", got.Status)
	}
	if got.PaidCents == nil || *got.PaidCents != 6_400 {
		t.Errorf("paid cents = %v, want 6400", got.PaidCents)
	}

	events := f.audit.EventsOfType(domain.AuditStatusChange)
	if len(events) != 1 {
		t.Fatalf("recorded %d status changes, want 1", len(events))
	}
}

func TestStatusPoller_NoWriteWithoutChange(t *testing.T) {
	f := setupPoller(t, 1.0, 1)
	ctx := context.Background()

	claim := seedSubmitted(t, f.claims, "claim-1", time.Now().UTC().Add(-time.Minute))

	sweep := f.poller.PollRail(domain.RailDentalNetwork)
	if err := sweep(ctx); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}

	first, _ := f.claims.GetClaim(ctx, claim.ID)
	if first.Status != domain.ClaimPaid {
		t.Fatalf("status = %q, want paid", first.Status)
	}

	// Paid claims are final, so the next sweep must not touch them at all.
	if err := sweep(ctx); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	second, _ := f.claims.GetClaim(ctx, claim.ID)
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("second sweep rewrote a final claim")
	}
	if n := len(f.audit.EventsOfType(domain.AuditStatusChange)); n != 1 {
		t.Errorf("recorded %d status changes after two sweeps, want 1", n)
	}
}

func TestStatusPoller_ReportsProcessingInsideWindow(t *testing.T) {
	f := setupPoller(t, 1.0, 60_000)
	ctx := context.Background()

	claim := seedSubmitted(t, f.claims, "claim-1", time.Now().UTC())

	if err := f.poller.PollRail(domain.RailDentalNetwork)(ctx); err != nil {
		t.Fatalf("poll sweep failed: %v", err)
	}

	got, _ := f.claims.GetClaim(ctx, claim.ID)
	if got.Status != domain.ClaimProcessing {
		t.Errorf("status = %q, want processing inside the insurer's window", got.Status)
	}
	// Still in flight; the next sweep keeps polling it.
	if !got.Status.InFlight() {
		t.Error("processing claim dropped from the polling set")
	}
}

func TestStatusPoller_SkipsClaimsWithoutExternalID(t *testing.T) {
	f := setupPoller(t, 1.0, 1)
	ctx := context.Background()

	claim := &domain.Claim{
		ID:             "claim-unsubmitted",
		OrgID:          "org-1",
		InsurerID:      "acme-dental",
		Type:           domain.ClaimTypeClaim,
		AmountCents:    10_000,
		ProcedureCodes: []string{"21211"},
		Status:         domain.ClaimPending,
	}
	if err := f.claims.CreateClaim(ctx, claim); err != nil {
		t.Fatalf("seeding claim: %v", err)
	}

	if err := f.poller.PollRail(domain.RailDentalNetwork)(ctx); err != nil {
		t.Fatalf("poll sweep failed: %v", err)
	}

	got, _ := f.claims.GetClaim(ctx, claim.ID)
	if got.Status != domain.ClaimPending {
		t.Errorf("status = %q, an unsubmitted claim must not be polled", got.Status)
	}
}

func TestStatusPoller_OtherRailsUntouched(t *testing.T) {
	f := setupPoller(t, 1.0, 1)
	ctx := context.Background()

	claim := seedSubmitted(t, f.claims, "claim-1", time.Now().UTC().Add(-time.Minute))

	// No insurer rides the portal rail in this fixture; the sweep is a no-op.
	if err := f.poller.PollRail(domain.RailPortalUpload)(ctx); err != nil {
		t.Fatalf("poll sweep failed: %v", err)
	}

	got, _ := f.claims.GetClaim(ctx, claim.ID)
	if got.Status != domain.ClaimSubmitted {
		t.Errorf("status = %q, a different rail's sweep touched this claim", got.Status)
	}
}
