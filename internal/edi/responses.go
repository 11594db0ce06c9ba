package edi

import (
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

// RemittanceAdvice explains how a paid amount was computed.
type RemittanceAdvice struct {
	BilledCents      int64 `json:"billed_cents"`
	AllowedCents     int64 `json:"allowed_cents"`
	DeductibleCents  int64 `json:"deductible_cents"`
	CoinsuranceCents int64 `json:"coinsurance_cents"`
	PaidCents        int64 `json:"paid_cents"`
}

// PaymentOutcome is the paid-claim branch of an adjudication.
type PaymentOutcome struct {
	ApprovedCents int64            `json:"approved_cents"`
	PaidCents     int64            `json:"paid_cents"`
	PaymentDate   time.Time        `json:"payment_date"`
	Remittance    RemittanceAdvice `json:"remittance"`
}

// DenialOutcome is the denied-claim branch of an adjudication.
type DenialOutcome struct {
	Reason         string    `json:"reason"`
	Code           string    `json:"code"`
	AppealDeadline time.Time `json:"appeal_deadline"`
}

// InfoRequestOutcome asks the provider for additional documentation.
type InfoRequestOutcome struct {
	Documents []string  `json:"documents"`
	DueDate   time.Time `json:"due_date"`
}

// ProcessingOutcome reports an adjudication still in progress.
type ProcessingOutcome struct {
	Stage           string `json:"stage"`
	PercentComplete int    `json:"percent_complete"`
}

// Adjudication is the normalized shape every rail's submit/poll response is
// mapped into. Exactly one outcome pointer is set, matching Status.
// Synthetic responses are tagged so they can never be mistaken for a live
// result downstream.
type Adjudication struct {
	Status      domain.ClaimStatus  `json:"status"`
	Payment     *PaymentOutcome     `json:"payment,omitempty"`
	Denial      *DenialOutcome      `json:"denial,omitempty"`
	InfoRequest *InfoRequestOutcome `json:"info_request,omitempty"`
	Processing  *ProcessingOutcome  `json:"processing,omitempty"`
	Synthetic   bool                `json:"synthetic"`
	Environment string              `json:"environment,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// SubmissionResult is returned by a successful submit attempt.
type SubmissionResult struct {
	ExternalID   string `json:"external_id"`
	SubmissionID string `json:"submission_id"`
	Adjudication
}

// StatusResult is returned by a status poll.
type StatusResult struct {
	ExternalID string `json:"external_id"`
	Adjudication
}

// ValidationResult reports rail-rule checks on a claim. Failures are
// reported, not raised.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Apply writes the adjudication back onto the claim, touching only the
// fields that belong to the outcome. Returns true if anything changed.
func (a *Adjudication) Apply(claim *domain.Claim) bool {
	changed := false
	if claim.Status != a.Status {
		claim.Status = a.Status
		changed = true
	}

	switch {
	case a.Payment != nil:
		if claim.PaidCents == nil || *claim.PaidCents != a.Payment.PaidCents {
			v := a.Payment.PaidCents
			claim.PaidCents = &v
			changed = true
		}
		if claim.PaymentDate == nil || !claim.PaymentDate.Equal(a.Payment.PaymentDate) {
			v := a.Payment.PaymentDate
			claim.PaymentDate = &v
			changed = true
		}
	case a.Denial != nil:
		if claim.DenialReason == nil || *claim.DenialReason != a.Denial.Reason {
			v := a.Denial.Reason
			claim.DenialReason = &v
			changed = true
		}
		if claim.DenialCode == nil || *claim.DenialCode != a.Denial.Code {
			v := a.Denial.Code
			claim.DenialCode = &v
			changed = true
		}
	}

	if changed && claim.LastError != nil {
		claim.LastError = nil
	}
	return changed
}
