package edi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
)

// Router is the single entry point for submit/poll/validate. It resolves the
// claim's insurer, writes an audit event for every attempt and error, and
// dispatches to the sandbox path (gateway + mock generator) or the production
// connector set depending on mode.
type Router struct {
	sandbox             bool
	productionConfirmed bool
	timeout             time.Duration
	registry            *domain.InsurerRegistry
	gateway             *Gateway
	mockgen             *MockResponseGenerator
	connectors          *ConnectorSet
	audit               store.AuditStore
	logger              *slog.Logger
}

// RouterConfig fixes the router's mode at startup. Sandbox is forced whenever
// the block-production flag is set or the deployment is non-production.
type RouterConfig struct {
	Sandbox             bool
	ProductionConfirmed bool
	Timeout             time.Duration
}

func NewRouter(
	cfg RouterConfig,
	registry *domain.InsurerRegistry,
	gateway *Gateway,
	mockgen *MockResponseGenerator,
	connectors *ConnectorSet,
	audit store.AuditStore,
	logger *slog.Logger,
) *Router {
	return &Router{
		sandbox:             cfg.Sandbox,
		productionConfirmed: cfg.ProductionConfirmed,
		timeout:             cfg.Timeout,
		registry:            registry,
		gateway:             gateway,
		mockgen:             mockgen,
		connectors:          connectors,
		audit:               audit,
		logger:              logger,
	}
}

// Sandbox reports the mode the router was fixed to at startup.
func (r *Router) Sandbox() bool { return r.sandbox }

func (r *Router) mode() string {
	if r.sandbox {
		return "sandbox"
	}
	return "production"
}

// Submit performs a single submission attempt for the claim.
func (r *Router) Submit(ctx context.Context, claim *domain.Claim, actor domain.Actor, attempt int) (*SubmissionResult, error) {
	cfg, err := r.registry.Lookup(claim.InsurerID)
	if err != nil {
		return nil, err
	}

	r.auditEvent(ctx, actor, domain.AuditSubmissionAttempt, domain.SubmissionAttemptDetails{
		ClaimID:   claim.ID,
		InsurerID: cfg.Name,
		Rail:      cfg.Rail,
		Mode:      r.mode(),
		ClaimType: claim.Type,
		Attempt:   attempt,
	})

	conn, err := r.connector(cfg, actor)
	if err != nil {
		r.auditSubmitError(ctx, actor, claim, err)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := conn.Submit(callCtx, claim)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("submit timed out: %w", ErrTransient)
		}
		r.auditSubmitError(ctx, actor, claim, err)
		return nil, err
	}
	return result, nil
}

// PollStatus queries the current adjudication state for a claim that has an
// external id.
func (r *Router) PollStatus(ctx context.Context, claim *domain.Claim, actor domain.Actor) (*StatusResult, error) {
	cfg, err := r.registry.Lookup(claim.InsurerID)
	if err != nil {
		return nil, err
	}
	if claim.ExternalID == nil {
		return nil, fmt.Errorf("claim %s has no external id to poll", claim.ID)
	}
	externalID := *claim.ExternalID

	r.auditEvent(ctx, actor, domain.AuditPollAttempt, domain.PollAttemptDetails{
		ClaimID:    claim.ID,
		InsurerID:  cfg.Name,
		ExternalID: externalID,
		Mode:       r.mode(),
	})

	conn, err := r.connector(cfg, actor)
	if err != nil {
		r.auditPollError(ctx, actor, claim, externalID, err)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := conn.PollStatus(callCtx, claim, externalID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("poll timed out: %w", ErrTransient)
		}
		r.auditPollError(ctx, actor, claim, externalID, err)
		return nil, err
	}
	return result, nil
}

// Validate runs the claim through its rail's business rules. Failures are
// reported in the result, never raised.
func (r *Router) Validate(ctx context.Context, claim *domain.Claim, actor domain.Actor) (*ValidationResult, error) {
	cfg, err := r.registry.Lookup(claim.InsurerID)
	if err != nil {
		return nil, err
	}

	conn, err := r.connector(cfg, actor)
	if err != nil {
		return nil, err
	}

	result, err := conn.Validate(ctx, claim)
	if err != nil {
		return nil, err
	}

	r.auditEvent(ctx, actor, domain.AuditValidationRun, domain.ValidationRunDetails{
		ClaimID:   claim.ID,
		InsurerID: cfg.Name,
		Valid:     result.Valid,
		Errors:    result.Errors,
	})
	return result, nil
}

// connector picks the path for one attempt. The production path re-runs the
// gateway host check so both modes exercise the same audit surface, and is
// additionally gated on the out-of-band confirmation flag.
func (r *Router) connector(cfg domain.InsurerRailConfig, actor domain.Actor) (Connector, error) {
	if r.sandbox {
		return &sandboxConnector{
			cfg:     cfg,
			gateway: r.gateway,
			mockgen: r.mockgen,
			actor:   actor,
		}, nil
	}

	if !r.productionConfirmed {
		return nil, fmt.Errorf("insurer %s: %w", cfg.Name, ErrNotConfirmed)
	}

	host, err := hostOf(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if err := r.gateway.CheckHost(host, http.MethodPost, cfg.Endpoint, actor); err != nil {
		return nil, err
	}

	return r.connectors.ForInsurer(cfg.Name)
}

func (r *Router) auditSubmitError(ctx context.Context, actor domain.Actor, claim *domain.Claim, callErr error) {
	details := domain.SubmissionErrorDetails{
		ClaimID:   claim.ID,
		InsurerID: claim.InsurerID,
		Error:     callErr.Error(),
	}
	var upstream *UpstreamError
	if errors.As(callErr, &upstream) {
		code := upstream.StatusCode
		details.UpstreamStatus = &code
	}
	r.auditEvent(ctx, actor, domain.AuditSubmissionError, details)

	if errors.Is(callErr, ErrProductionBlocked) {
		host, _ := hostOf(claimEndpoint(r.registry, claim))
		r.auditEvent(ctx, actor, domain.AuditBlockedCall, domain.BlockedCallDetails{
			URL:    claimEndpoint(r.registry, claim),
			Method: http.MethodPost,
			Host:   host,
		})
	}
}

func (r *Router) auditPollError(ctx context.Context, actor domain.Actor, claim *domain.Claim, externalID string, callErr error) {
	r.auditEvent(ctx, actor, domain.AuditPollError, domain.PollErrorDetails{
		ClaimID:    claim.ID,
		InsurerID:  claim.InsurerID,
		ExternalID: externalID,
		Error:      callErr.Error(),
	})
}

func (r *Router) auditEvent(ctx context.Context, actor domain.Actor, t domain.AuditEventType, details domain.AuditDetails) {
	event := &domain.AuditEvent{
		OrgID:       actor.OrgID,
		ActorUserID: actor.UserID,
		Type:        t,
		Details:     details,
		IP:          actor.IP,
		UserAgent:   actor.UserAgent,
	}
	if err := r.audit.CreateAuditEvent(ctx, event); err != nil {
		r.logger.Error("failed to write audit event", "error", err, "event_type", t)
	}
}

func claimEndpoint(registry *domain.InsurerRegistry, claim *domain.Claim) string {
	cfg, err := registry.Lookup(claim.InsurerID)
	if err != nil {
		return ""
	}
	return cfg.Endpoint
}
