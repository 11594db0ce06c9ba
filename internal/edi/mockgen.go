package edi

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

// Payout schedule for synthetic paid claims: the insurer allows 80% of the
// billed amount, then withholds 10% deductible and 10% coinsurance of the
// allowed amount.
const (
	allowedRateBps     = 8000
	deductibleRateBps  = 1000
	coinsuranceRateBps = 1000

	paymentDelay   = 14 * 24 * time.Hour
	appealWindow   = 90 * 24 * time.Hour
	documentWindow = 21 * 24 * time.Hour
)

var denialReasons = []struct {
	Code   string
	Reason string
}{
	{"D001", "service not covered under plan"},
	{"D002", "annual maximum reached"},
	{"D003", "frequency limitation exceeded"},
	{"D004", "missing tooth clause applies"},
	{"D005", "pre-existing condition exclusion"},
	{"D006", "coordination of benefits required"},
}

var infoRequestDocuments = []string{
	"radiograph",
	"periodontal chart",
	"treatment plan",
	"coordination of benefits form",
	"specialist referral",
}

var processingStages = []string{
	"received",
	"in review",
	"pending adjudication",
	"final review",
}

// MockResponseGenerator produces statistically varied synthetic adjudication
// outcomes per insurer config. Only the sandbox path uses it, but its output
// shape is identical to what a live connector returns.
type MockResponseGenerator struct {
	idPrefix string
	envTag   string
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockResponseGenerator(idPrefix, envTag string, logger *slog.Logger) *MockResponseGenerator {
	return &MockResponseGenerator{
		idPrefix: idPrefix,
		envTag:   envTag,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Submission produces a synthetic submit response for the claim: a sandbox-
// prefixed external id plus a drawn final outcome.
func (g *MockResponseGenerator) Submission(cfg domain.InsurerRailConfig, claim *domain.Claim) *SubmissionResult {
	now := time.Now().UTC()
	externalID := NewTrackingNumber(g.idPrefix, claim.Type, now)

	result := &SubmissionResult{
		ExternalID:   externalID,
		SubmissionID: externalID,
		Adjudication: g.adjudicate(cfg, claim, now),
	}

	g.logger.Debug("generated synthetic submission response",
		"claim_id", claim.ID,
		"insurer_id", cfg.Name,
		"external_id", externalID,
		"status", result.Status,
	)
	return result
}

// PollStatus produces a synthetic poll response for a previously issued
// external id. Within the insurer's processing window it reports processing;
// afterwards it draws a final outcome.
func (g *MockResponseGenerator) PollStatus(cfg domain.InsurerRailConfig, claim *domain.Claim, externalID string) *StatusResult {
	now := time.Now().UTC()

	if issued, ok := TrackingTimestamp(externalID); ok {
		window := time.Duration(cfg.ProcessingTimeMs) * time.Millisecond
		if now.Sub(issued) < window {
			return &StatusResult{
				ExternalID:   externalID,
				Adjudication: g.processing(now),
			}
		}
		return &StatusResult{
			ExternalID:   externalID,
			Adjudication: g.adjudicate(cfg, claim, now),
		}
	}

	// Upstream no longer recognizes the id. Reported, not raised as a crash.
	g.logger.Warn("poll for unrecognized external id",
		"external_id", externalID,
		"insurer_id", cfg.Name,
	)
	return &StatusResult{
		ExternalID:   externalID,
		Adjudication: g.processing(now),
	}
}

// Outcome draws one final adjudication status from the insurer's probability
// table: approval first, then info request, with the remaining mass denial.
func (g *MockResponseGenerator) Outcome(cfg domain.InsurerRailConfig) domain.ClaimStatus {
	g.mu.Lock()
	draw := g.rng.Float64()
	g.mu.Unlock()

	switch {
	case draw < cfg.ApprovalRate:
		return domain.ClaimPaid
	case draw < cfg.ApprovalRate+cfg.InfoRequestRate:
		return domain.ClaimInfoRequested
	default:
		return domain.ClaimDenied
	}
}

func (g *MockResponseGenerator) adjudicate(cfg domain.InsurerRailConfig, claim *domain.Claim, now time.Time) Adjudication {
	adj := Adjudication{
		Status:      g.Outcome(cfg),
		Synthetic:   true,
		Environment: g.envTag,
		GeneratedAt: now,
	}

	switch adj.Status {
	case domain.ClaimPaid:
		adj.Payment = g.payment(claim.AmountCents, now)
	case domain.ClaimDenied:
		g.mu.Lock()
		pick := denialReasons[g.rng.Intn(len(denialReasons))]
		g.mu.Unlock()
		adj.Denial = &DenialOutcome{
			Reason:         pick.Reason,
			Code:           pick.Code,
			AppealDeadline: now.Add(appealWindow),
		}
	case domain.ClaimInfoRequested:
		g.mu.Lock()
		count := 1 + g.rng.Intn(3)
		docs := make([]string, 0, count)
		for _, i := range g.rng.Perm(len(infoRequestDocuments))[:count] {
			docs = append(docs, infoRequestDocuments[i])
		}
		g.mu.Unlock()
		adj.InfoRequest = &InfoRequestOutcome{
			Documents: docs,
			DueDate:   now.Add(documentWindow),
		}
	}
	return adj
}

func (g *MockResponseGenerator) payment(billedCents int64, now time.Time) *PaymentOutcome {
	allowed := billedCents * allowedRateBps / 10000
	deductible := allowed * deductibleRateBps / 10000
	coinsurance := allowed * coinsuranceRateBps / 10000
	paid := allowed - deductible - coinsurance

	return &PaymentOutcome{
		ApprovedCents: allowed,
		PaidCents:     paid,
		PaymentDate:   now.Add(paymentDelay),
		Remittance: RemittanceAdvice{
			BilledCents:      billedCents,
			AllowedCents:     allowed,
			DeductibleCents:  deductible,
			CoinsuranceCents: coinsurance,
			PaidCents:        paid,
		},
	}
}

func (g *MockResponseGenerator) processing(now time.Time) Adjudication {
	g.mu.Lock()
	stage := processingStages[g.rng.Intn(len(processingStages))]
	pct := 10 + g.rng.Intn(85)
	g.mu.Unlock()

	return Adjudication{
		Status: domain.ClaimProcessing,
		Processing: &ProcessingOutcome{
			Stage:           stage,
			PercentComplete: pct,
		},
		Synthetic:   true,
		Environment: g.envTag,
		GeneratedAt: now,
	}
}
