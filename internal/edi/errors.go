package edi

import (
	"errors"
	"fmt"
)

// Error taxonomy. The queue dispatches on these with errors.Is: transient
// failures drive the retry state machine, security and validation failures
// are never retried.
var (
	// ErrTransient marks a simulated or real transport failure, including
	// timeouts. Safe to retry.
	ErrTransient = errors.New("transient transport failure")

	// ErrProductionBlocked marks an attempt to reach a deny-listed production
	// domain while in sandbox mode. Never retried.
	ErrProductionBlocked = errors.New("production endpoint blocked in sandbox mode")

	// ErrNotConfirmed marks a production-mode call without the out-of-band
	// production-confirmed flag.
	ErrNotConfirmed = errors.New("production submission not confirmed")
)

// ValidationError reports rail-rule failures for a claim. Reported to the
// caller, never retried.
type ValidationError struct {
	ClaimID string
	Errors  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("claim %s failed validation: %v", e.ClaimID, e.Errors)
}

// UpstreamError carries a non-success status code from an insurer endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Unwrap classifies 5xx and 429 responses as transient so the queue retries
// them; other statuses are terminal.
func (e *UpstreamError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == 429 {
		return ErrTransient
	}
	return nil
}
