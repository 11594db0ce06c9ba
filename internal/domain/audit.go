package domain

import (
	"time"
)

type AuditEventType string

const (
	AuditSubmissionAttempt AuditEventType = "edi.submission.attempt"
	AuditSubmissionError   AuditEventType = "edi.submission.error"
	AuditPollAttempt       AuditEventType = "edi.poll.attempt"
	AuditPollError         AuditEventType = "edi.poll.error"
	AuditValidationRun     AuditEventType = "edi.validation.run"
	AuditBlockedCall       AuditEventType = "edi.network.blocked"
	AuditStatusChange      AuditEventType = "claim.status.change"
)

// AuditDetails is the closed set of event-kind-specific payloads. Each kind
// carries its own struct so audit consumers never parse free-form maps.
type AuditDetails interface {
	auditDetails()
}

// SubmissionAttemptDetails is logged before every submit dispatch.
type SubmissionAttemptDetails struct {
	ClaimID   string    `json:"claim_id"`
	InsurerID string    `json:"insurer_id"`
	Rail      Rail      `json:"rail"`
	Mode      string    `json:"mode"`
	ClaimType ClaimType `json:"claim_type"`
	Attempt   int       `json:"attempt,omitempty"`
}

// SubmissionErrorDetails is logged when a submit dispatch fails.
type SubmissionErrorDetails struct {
	ClaimID        string `json:"claim_id"`
	InsurerID      string `json:"insurer_id"`
	Error          string `json:"error"`
	UpstreamStatus *int   `json:"upstream_status,omitempty"`
}

// PollAttemptDetails is logged before every status poll.
type PollAttemptDetails struct {
	ClaimID    string `json:"claim_id"`
	InsurerID  string `json:"insurer_id"`
	ExternalID string `json:"external_id"`
	Mode       string `json:"mode"`
}

// PollErrorDetails is logged when a status poll fails.
type PollErrorDetails struct {
	ClaimID    string `json:"claim_id"`
	InsurerID  string `json:"insurer_id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
}

// ValidationRunDetails records the outcome of a rail-rule validation.
type ValidationRunDetails struct {
	ClaimID   string   `json:"claim_id"`
	InsurerID string   `json:"insurer_id"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
}

// BlockedCallDetails records an outbound call the isolation gateway refused.
type BlockedCallDetails struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Host   string `json:"host"`
}

// StatusChangeDetails records a claim status transition written back by the
// queue or the status poller.
type StatusChangeDetails struct {
	ClaimID string      `json:"claim_id"`
	From    ClaimStatus `json:"from"`
	To      ClaimStatus `json:"to"`
	Source  string      `json:"source"`
}

// RawAuditDetails carries a stored details payload back out of audit storage
// without forcing a decode into a specific kind.
type RawAuditDetails []byte

func (d RawAuditDetails) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

func (SubmissionAttemptDetails) auditDetails() {}
func (RawAuditDetails) auditDetails()          {}
func (SubmissionErrorDetails) auditDetails()   {}
func (PollAttemptDetails) auditDetails()       {}
func (PollErrorDetails) auditDetails()         {}
func (ValidationRunDetails) auditDetails()     {}
func (BlockedCallDetails) auditDetails()       {}
func (StatusChangeDetails) auditDetails()      {}

// AuditEvent is the pipeline's durable side channel. Every submit, poll,
// validation, error, and blocked network call produces one.
type AuditEvent struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"org_id"`
	ActorUserID string         `json:"actor_user_id"`
	Type        AuditEventType `json:"type"`
	Details     AuditDetails   `json:"details"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// BlockedAttempt is the append-only record of an outbound call the gateway
// rejected. Clearable by an administrative operation.
type BlockedAttempt struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
}
