package store

import (
	"context"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

// ClaimStore is the pipeline's view of claim storage. The pipeline reads
// claims and writes back adjudication state; it never owns claim identity.
type ClaimStore interface {
	CreateClaim(ctx context.Context, claim *domain.Claim) error
	GetClaim(ctx context.Context, id string) (*domain.Claim, error)
	UpdateClaim(ctx context.Context, claim *domain.Claim) error
	ListInFlight(ctx context.Context, insurerIDs []string) ([]domain.Claim, error)
}

// AuditStore is the append-only audit sink.
type AuditStore interface {
	CreateAuditEvent(ctx context.Context, event *domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, orgID string, limit int) ([]domain.AuditEvent, error)
}

// JobStore persists the submission job map as a single snapshot. Load applies
// the crash-recovery pass; Save must replace the snapshot atomically.
type JobStore interface {
	Load(now time.Time) (map[string]*domain.SubmissionJob, error)
	Save(jobs map[string]*domain.SubmissionJob) error
}
