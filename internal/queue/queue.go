package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/engine"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
	ws "github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/websocket"
	"github.com/google/uuid"
)

// deferDelay pushes a job back without consuming an attempt when the insurer
// limiter or breaker refuses dispatch.
const deferDelay = time.Second

// Options tunes the queue.
type Options struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	PollInterval time.Duration
}

// Queue orchestrates retryable submission jobs on top of the router and the
// job store. Each job gets at most one attempt in flight; the full job map is
// persisted after every state transition so the store is never more than one
// transition stale.
type Queue struct {
	opts    Options
	router  *edi.Router
	claims  store.ClaimStore
	audit   store.AuditStore
	jobs    store.JobStore
	limiter *engine.InsurerLimiter
	breaker *engine.InsurerBreaker
	hub     *ws.Hub
	logger  *slog.Logger

	insurerRateLimit int

	mu  sync.Mutex
	m   map[string]*domain.SubmissionJob
	rng *rand.Rand

	wg sync.WaitGroup
}

func New(
	opts Options,
	router *edi.Router,
	claims store.ClaimStore,
	audit store.AuditStore,
	jobs store.JobStore,
	logger *slog.Logger,
) *Queue {
	return &Queue{
		opts:   opts,
		router: router,
		claims: claims,
		audit:  audit,
		jobs:   jobs,
		logger: logger,
		m:      make(map[string]*domain.SubmissionJob),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLimiter installs the per-insurer rate limiter.
func (q *Queue) WithLimiter(l *engine.InsurerLimiter, perSecond int) *Queue {
	q.limiter = l
	q.insurerRateLimit = perSecond
	return q
}

// WithBreaker installs the per-insurer circuit breaker.
func (q *Queue) WithBreaker(b *engine.InsurerBreaker) *Queue {
	q.breaker = b
	return q
}

// WithHub installs the operator event hub.
func (q *Queue) WithHub(h *ws.Hub) *Queue {
	q.hub = h
	return q
}

// Recover loads the persisted job map. The store's load pass reclaims jobs
// interrupted by process death.
func (q *Queue) Recover(now time.Time) error {
	jobs, err := q.jobs.Load(now)
	if err != nil {
		return fmt.Errorf("recovering job store: %w", err)
	}

	q.mu.Lock()
	q.m = jobs
	q.mu.Unlock()

	q.logger.Info("job store recovered", "jobs", len(jobs))
	return nil
}

// Enqueue validates the claim against its rail's rules and, if it passes,
// creates a queued submission job. Validation failures go straight back to
// the caller and are never retried.
func (q *Queue) Enqueue(ctx context.Context, claimID string, actor domain.Actor) (*domain.SubmissionJob, error) {
	claim, err := q.claims.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %s not found", claimID)
	}

	vr, err := q.router.Validate(ctx, claim, actor)
	if err != nil {
		return nil, err
	}
	if !vr.Valid {
		return nil, &edi.ValidationError{ClaimID: claim.ID, Errors: vr.Errors}
	}

	now := time.Now().UTC()
	requestID := uuid.NewString()
	hash := sha256.Sum256([]byte(requestID + ":" + claim.ID))

	job := &domain.SubmissionJob{
		ID:            uuid.NewString(),
		ClaimID:       claim.ID,
		OrgID:         claim.OrgID,
		RequestedBy:   actor.UserID,
		ClaimType:     claim.Type,
		Attempt:       0,
		MaxAttempts:   q.opts.MaxAttempts,
		NextAttemptAt: now,
		State:         domain.JobQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
		RequestID:     requestID,
		RequestIDHash: hex.EncodeToString(hash[:8]),
	}

	q.mu.Lock()
	q.m[job.ID] = job
	q.persistLocked()
	q.mu.Unlock()

	q.notify(job, claim.Status, "")
	q.logger.Info("submission job enqueued",
		"job_id", job.ID,
		"claim_id", claim.ID,
		"insurer_id", claim.InsurerID,
	)
	return job.Clone(), nil
}

// Get returns a copy of the job, or nil if unknown.
func (q *Queue) Get(jobID string) *domain.SubmissionJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.m[jobID]
	if !ok {
		return nil
	}
	return job.Clone()
}

// List returns copies of all jobs, newest first.
func (q *Queue) List() []*domain.SubmissionJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.SubmissionJob, 0, len(q.m))
	for _, job := range q.m {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Stats returns job counts per state.
func (q *Queue) Stats() map[domain.JobState]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := make(map[domain.JobState]int)
	for _, job := range q.m {
		stats[job.State]++
	}
	return stats
}

// Retry manually re-enqueues a failed job with a fresh attempt budget.
func (q *Queue) Retry(jobID string) (*domain.SubmissionJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.m[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.State != domain.JobFailed {
		return nil, fmt.Errorf("job %s is %s, only failed jobs can be re-enqueued", jobID, job.State)
	}

	now := time.Now().UTC()
	job.State = domain.JobQueued
	job.Attempt = 0
	job.NextAttemptAt = now
	job.UpdatedAt = now
	job.LastError = nil
	job.LastUpstreamStatus = nil
	q.persistLocked()

	return job.Clone(), nil
}

// PurgeTerminal removes terminal jobs not updated since the cutoff. Returns
// how many were removed.
func (q *Queue) PurgeTerminal(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.m {
		if job.State.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(q.m, id)
			removed++
		}
	}
	if removed > 0 {
		q.persistLocked()
	}
	return removed
}

// Start runs the dispatch loop until the context is cancelled, then waits for
// in-flight attempts to finish.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("submission queue started", "poll_interval", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("submission queue stopping")
			q.wg.Wait()
			return
		case <-ticker.C:
			q.tick(ctx)
		}
	}
}

// Tick runs one dispatch pass. Exported for tests that drive the queue
// without the loop.
func (q *Queue) Tick(ctx context.Context) {
	q.tick(ctx)
}

func (q *Queue) tick(ctx context.Context) {
	now := time.Now().UTC()

	q.mu.Lock()
	var due []*domain.SubmissionJob
	for _, job := range q.m {
		if (job.State == domain.JobQueued || job.State == domain.JobRetrying) && !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	q.mu.Unlock()

	for _, job := range due {
		q.dispatch(ctx, job.ID)
	}
}

// dispatch claims one due job and runs a single attempt in its own goroutine.
// The running mark happens under the lock before any I/O, so a concurrent
// pass cannot double-dispatch the same job.
func (q *Queue) dispatch(ctx context.Context, jobID string) {
	q.mu.Lock()
	job, ok := q.m[jobID]
	if !ok || (job.State != domain.JobQueued && job.State != domain.JobRetrying) {
		q.mu.Unlock()
		return
	}

	claimID := job.ClaimID
	insurerID := ""
	q.mu.Unlock()

	// Resolve the insurer for the limiter and breaker checks.
	claim, err := q.claims.GetClaim(ctx, claimID)
	if err == nil && claim != nil {
		insurerID = claim.InsurerID
	}

	if insurerID != "" && !q.dispatchAllowed(ctx, insurerID) {
		q.mu.Lock()
		if job, ok := q.m[jobID]; ok && !job.State.Terminal() {
			job.NextAttemptAt = time.Now().UTC().Add(deferDelay)
			job.UpdatedAt = time.Now().UTC()
			q.persistLocked()
		}
		q.mu.Unlock()
		return
	}

	q.mu.Lock()
	job, ok = q.m[jobID]
	if !ok || (job.State != domain.JobQueued && job.State != domain.JobRetrying) {
		q.mu.Unlock()
		return
	}
	if job.Attempt >= job.MaxAttempts {
		// Should have been failed already; never exceed the budget.
		q.failLocked(job, "attempt budget exhausted", nil)
		q.mu.Unlock()
		return
	}
	job.State = domain.JobRunning
	job.Attempt++
	job.UpdatedAt = time.Now().UTC()
	q.persistLocked()
	snapshot := job.Clone()
	q.mu.Unlock()

	q.notify(snapshot, "", "")

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(ctx, snapshot)
	}()
}

func (q *Queue) dispatchAllowed(ctx context.Context, insurerID string) bool {
	if q.breaker != nil {
		if _, allowed := q.breaker.AllowRequest(ctx, insurerID); !allowed {
			q.logger.Debug("dispatch deferred, insurer circuit open", "insurer_id", insurerID)
			return false
		}
	}
	if q.limiter != nil && !q.limiter.Allow(ctx, insurerID, q.insurerRateLimit) {
		return false
	}
	return true
}

// run executes one submission attempt for a job already marked running.
func (q *Queue) run(ctx context.Context, snapshot *domain.SubmissionJob) {
	claim, err := q.claims.GetClaim(ctx, snapshot.ClaimID)
	if err == nil && claim == nil {
		err = fmt.Errorf("claim %s not found", snapshot.ClaimID)
	}
	if err != nil {
		q.complete(ctx, snapshot.ID, "", nil, err)
		return
	}

	actor := domain.SystemActor(snapshot.OrgID)
	if snapshot.RequestedBy != "" {
		actor.UserID = snapshot.RequestedBy
	}

	result, err := q.router.Submit(ctx, claim, actor, snapshot.Attempt)
	if err != nil {
		q.complete(ctx, snapshot.ID, claim.InsurerID, nil, err)
		return
	}

	prev := claim.Status
	claim.ExternalID = &result.ExternalID
	claim.SubmissionID = &result.SubmissionID
	result.Apply(claim)

	if err := q.claims.UpdateClaim(ctx, claim); err != nil {
		q.complete(ctx, snapshot.ID, claim.InsurerID, nil, fmt.Errorf("writing back claim: %w: %v", edi.ErrTransient, err))
		return
	}
	if prev != claim.Status {
		q.auditStatusChange(ctx, actor, claim.ID, prev, claim.Status)
	}

	q.complete(ctx, snapshot.ID, claim.InsurerID, result, nil)
}

// complete applies the attempt outcome to the job state machine.
func (q *Queue) complete(ctx context.Context, jobID, insurerID string, result *edi.SubmissionResult, attemptErr error) {
	now := time.Now().UTC()

	q.mu.Lock()
	job, ok := q.m[jobID]
	if !ok || job.State != domain.JobRunning {
		q.mu.Unlock()
		return
	}

	var snapshot *domain.SubmissionJob
	var status domain.ClaimStatus
	errMsg := ""

	switch {
	case attemptErr == nil:
		job.State = domain.JobSucceeded
		job.UpdatedAt = now
		job.LastError = nil
		job.LastUpstreamStatus = nil
		status = result.Status
	case q.retryable(attemptErr):
		msg := attemptErr.Error()
		job.LastError = &msg
		job.LastUpstreamStatus = upstreamStatus(attemptErr)
		errMsg = msg
		if job.Attempt >= job.MaxAttempts {
			job.State = domain.JobFailed
		} else {
			job.State = domain.JobRetrying
			job.NextAttemptAt = now.Add(backoffDelay(job.Attempt, q.opts.BaseDelay, q.opts.MaxDelay, q.rng))
		}
		job.UpdatedAt = now
	default:
		msg := attemptErr.Error()
		job.LastError = &msg
		job.LastUpstreamStatus = upstreamStatus(attemptErr)
		job.State = domain.JobFailed
		job.UpdatedAt = now
		errMsg = msg
	}

	q.persistLocked()
	snapshot = job.Clone()
	q.mu.Unlock()

	if insurerID != "" && q.breaker != nil {
		if attemptErr == nil {
			q.breaker.RecordSuccess(ctx, insurerID)
		} else if q.retryable(attemptErr) {
			q.breaker.RecordFailure(ctx, insurerID)
		}
	}

	if snapshot.State == domain.JobFailed {
		q.recordClaimError(ctx, snapshot.ClaimID, errMsg)
	}

	q.notify(snapshot, status, errMsg)

	switch snapshot.State {
	case domain.JobSucceeded:
		q.logger.Info("submission succeeded",
			"job_id", snapshot.ID,
			"claim_id", snapshot.ClaimID,
			"attempt", snapshot.Attempt,
			"claim_status", status,
		)
	case domain.JobRetrying:
		q.logger.Warn("submission attempt failed, will retry",
			"job_id", snapshot.ID,
			"claim_id", snapshot.ClaimID,
			"attempt", snapshot.Attempt,
			"next_attempt_at", snapshot.NextAttemptAt,
			"error", errMsg,
		)
	case domain.JobFailed:
		q.logger.Error("submission failed",
			"job_id", snapshot.ID,
			"claim_id", snapshot.ClaimID,
			"attempt", snapshot.Attempt,
			"error", errMsg,
		)
	}
}

// retryable reports whether the error is a transient transport failure.
// Security violations and validation failures are terminal.
func (q *Queue) retryable(err error) bool {
	if errors.Is(err, edi.ErrProductionBlocked) || errors.Is(err, edi.ErrNotConfirmed) {
		return false
	}
	var verr *edi.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	return errors.Is(err, edi.ErrTransient)
}

// failLocked forces a job to failed. Caller holds the lock.
func (q *Queue) failLocked(job *domain.SubmissionJob, msg string, upstream *int) {
	job.State = domain.JobFailed
	job.LastError = &msg
	job.LastUpstreamStatus = upstream
	job.UpdatedAt = time.Now().UTC()
	q.persistLocked()
}

// recordClaimError leaves the claim's prior status in place but makes the
// last error visible, so a claim that cannot be submitted is never silently
// dropped.
func (q *Queue) recordClaimError(ctx context.Context, claimID, msg string) {
	claim, err := q.claims.GetClaim(ctx, claimID)
	if err != nil || claim == nil {
		return
	}
	claim.LastError = &msg
	if err := q.claims.UpdateClaim(ctx, claim); err != nil {
		q.logger.Error("failed to record claim error", "error", err, "claim_id", claimID)
	}
}

func (q *Queue) auditStatusChange(ctx context.Context, actor domain.Actor, claimID string, from, to domain.ClaimStatus) {
	event := &domain.AuditEvent{
		OrgID:       actor.OrgID,
		ActorUserID: actor.UserID,
		Type:        domain.AuditStatusChange,
		Details: domain.StatusChangeDetails{
			ClaimID: claimID,
			From:    from,
			To:      to,
			Source:  "submission_queue",
		},
	}
	if err := q.audit.CreateAuditEvent(ctx, event); err != nil {
		q.logger.Error("failed to write audit event", "error", err, "claim_id", claimID)
	}
}

// persistLocked saves the full job map. Caller holds the lock; the store is
// the single-writer resource so every transition goes through here.
func (q *Queue) persistLocked() {
	if err := q.jobs.Save(q.m); err != nil {
		q.logger.Error("failed to persist job store", "error", err)
	}
}

func (q *Queue) notify(job *domain.SubmissionJob, status domain.ClaimStatus, errMsg string) {
	if q.hub == nil {
		return
	}
	q.hub.Broadcast(ws.JobEvent{
		JobID:     job.ID,
		ClaimID:   job.ClaimID,
		State:     job.State,
		Attempt:   job.Attempt,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}

func upstreamStatus(err error) *int {
	var upstream *edi.UpstreamError
	if errors.As(err, &upstream) {
		code := upstream.StatusCode
		return &code
	}
	return nil
}
