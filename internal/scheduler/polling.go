package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
)

// StatusPoller asks each rail's connector for the current adjudication state
// of claims still in flight and writes back only what changed.
type StatusPoller struct {
	registry *domain.InsurerRegistry
	router   *edi.Router
	claims   store.ClaimStore
	audit    store.AuditStore
	logger   *slog.Logger
}

func NewStatusPoller(
	registry *domain.InsurerRegistry,
	router *edi.Router,
	claims store.ClaimStore,
	audit store.AuditStore,
	logger *slog.Logger,
) *StatusPoller {
	return &StatusPoller{
		registry: registry,
		router:   router,
		claims:   claims,
		audit:    audit,
		logger:   logger,
	}
}

// PollRail returns the task function polling all in-flight claims for one
// rail. A single claim's failure is logged and does not stop the sweep.
func (p *StatusPoller) PollRail(rail domain.Rail) TaskFunc {
	return func(ctx context.Context) error {
		insurers := p.registry.Names(rail)
		if len(insurers) == 0 {
			return nil
		}

		claims, err := p.claims.ListInFlight(ctx, insurers)
		if err != nil {
			return fmt.Errorf("listing in-flight claims for %s: %w", rail, err)
		}

		polled, updated := 0, 0
		for i := range claims {
			claim := claims[i]
			changed, err := p.pollOne(ctx, &claim)
			if err != nil {
				p.logger.Warn("status poll failed",
					"claim_id", claim.ID,
					"insurer_id", claim.InsurerID,
					"error", err,
				)
				continue
			}
			polled++
			if changed {
				updated++
			}
		}

		if polled > 0 {
			p.logger.Info("status poll sweep complete",
				"rail", rail,
				"polled", polled,
				"updated", updated,
			)
		}
		return nil
	}
}

// pollOne polls a single claim and persists the result only when a field
// actually changed, avoiding no-op writes.
func (p *StatusPoller) pollOne(ctx context.Context, claim *domain.Claim) (bool, error) {
	actor := domain.SystemActor(claim.OrgID)

	result, err := p.router.PollStatus(ctx, claim, actor)
	if err != nil {
		return false, err
	}

	prev := claim.Status
	if !result.Apply(claim) {
		return false, nil
	}

	if err := p.claims.UpdateClaim(ctx, claim); err != nil {
		return false, fmt.Errorf("writing back claim: %w", err)
	}

	if prev != claim.Status {
		event := &domain.AuditEvent{
			OrgID:       actor.OrgID,
			ActorUserID: actor.UserID,
			Type:        domain.AuditStatusChange,
			Details: domain.StatusChangeDetails{
				ClaimID: claim.ID,
				From:    prev,
				To:      claim.Status,
				Source:  "status_poller",
			},
		}
		if err := p.audit.CreateAuditEvent(ctx, event); err != nil {
			p.logger.Error("failed to write audit event", "error", err, "claim_id", claim.ID)
		}
	}
	return true, nil
}
