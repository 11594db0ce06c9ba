package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
)

const claimColumns = `id, org_id, insurer_id, claim_type, amount_cents, procedure_codes, status,
	external_id, submission_id, paid_cents, payment_date, denial_reason, denial_code, last_error,
	created_at, updated_at`

// CreateClaim inserts a claim record.
func (s *PostgresStore) CreateClaim(ctx context.Context, claim *domain.Claim) error {
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO claims (id, org_id, insurer_id, claim_type, amount_cents, procedure_codes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, claim.ID, claim.OrgID, claim.InsurerID, claim.Type, claim.AmountCents,
		claim.ProcedureCodes, claim.Status, claim.CreatedAt, claim.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting claim: %w", err)
	}
	return nil
}

// GetClaim returns the claim with the given id, or nil if not found.
func (s *PostgresStore) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	var c domain.Claim
	err := s.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.OrgID, &c.InsurerID, &c.Type, &c.AmountCents, &c.ProcedureCodes, &c.Status,
		&c.ExternalID, &c.SubmissionID, &c.PaidCents, &c.PaymentDate, &c.DenialReason,
		&c.DenialCode, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying claim: %w", err)
	}
	return &c, nil
}

// UpdateClaim writes back the adjudication fields the pipeline owns.
func (s *PostgresStore) UpdateClaim(ctx context.Context, claim *domain.Claim) error {
	claim.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE claims
		SET status = $2, external_id = $3, submission_id = $4, paid_cents = $5,
			payment_date = $6, denial_reason = $7, denial_code = $8, last_error = $9,
			updated_at = $10
		WHERE id = $1
	`, claim.ID, claim.Status, claim.ExternalID, claim.SubmissionID, claim.PaidCents,
		claim.PaymentDate, claim.DenialReason, claim.DenialCode, claim.LastError, claim.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s not found", claim.ID)
	}
	return nil
}

// ListInFlight returns claims for the given insurers that are still awaiting
// a final adjudication decision.
func (s *PostgresStore) ListInFlight(ctx context.Context, insurerIDs []string) ([]domain.Claim, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE insurer_id = ANY($1)
		  AND status IN ('submitted', 'processing', 'info_requested')
		  AND external_id IS NOT NULL
		ORDER BY updated_at ASC
	`, insurerIDs)
	if err != nil {
		return nil, fmt.Errorf("querying in-flight claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		err := rows.Scan(
			&c.ID, &c.OrgID, &c.InsurerID, &c.Type, &c.AmountCents, &c.ProcedureCodes, &c.Status,
			&c.ExternalID, &c.SubmissionID, &c.PaidCents, &c.PaymentDate, &c.DenialReason,
			&c.DenialCode, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, c)
	}

	if claims == nil {
		claims = []domain.Claim{}
	}
	return claims, nil
}
