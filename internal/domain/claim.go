package domain

import (
	"time"
)

type ClaimType string

const (
	ClaimTypeClaim   ClaimType = "claim"
	ClaimTypePreauth ClaimType = "preauth"
)

type ClaimStatus string

const (
	ClaimPending       ClaimStatus = "pending"
	ClaimSubmitted     ClaimStatus = "submitted"
	ClaimProcessing    ClaimStatus = "processing"
	ClaimPaid          ClaimStatus = "paid"
	ClaimDenied        ClaimStatus = "denied"
	ClaimInfoRequested ClaimStatus = "info_requested"
)

// InFlight reports whether the claim is still awaiting a final adjudication
// decision and should be picked up by the status poller.
func (s ClaimStatus) InFlight() bool {
	return s == ClaimSubmitted || s == ClaimProcessing || s == ClaimInfoRequested
}

// Claim is the slice of the claim record the pipeline reads and annotates.
// Claim identity is owned by claim storage; the pipeline never creates or
// deletes claims in production, it only writes back adjudication state.
type Claim struct {
	ID             string      `json:"id"`
	OrgID          string      `json:"org_id"`
	InsurerID      string      `json:"insurer_id"`
	Type           ClaimType   `json:"type"`
	AmountCents    int64       `json:"amount_cents"`
	ProcedureCodes []string    `json:"procedure_codes"`
	Status         ClaimStatus `json:"status"`
	ExternalID     *string     `json:"external_id,omitempty"`
	SubmissionID   *string     `json:"submission_id,omitempty"`
	PaidCents      *int64      `json:"paid_cents,omitempty"`
	PaymentDate    *time.Time  `json:"payment_date,omitempty"`
	DenialReason   *string     `json:"denial_reason,omitempty"`
	DenialCode     *string     `json:"denial_code,omitempty"`
	LastError      *string     `json:"last_error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Actor identifies who (or what) triggered a pipeline operation, for audit
// attribution. Background work uses the job's org with the system user.
type Actor struct {
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SystemActor is the attribution used by the queue and scheduler when no
// human actor is on the call path.
func SystemActor(orgID string) Actor {
	return Actor{OrgID: orgID, UserID: "system"}
}
