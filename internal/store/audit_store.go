package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/google/uuid"
)

// CreateAuditEvent appends one audit event. Details are serialized from the
// typed payload; readers get the raw JSON back.
func (s *PostgresStore) CreateAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, org_id, actor_user_id, event_type, details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.OrgID, event.ActorUserID, event.Type, details, event.IP, event.UserAgent, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest audit events, optionally filtered by org.
// Details come back as raw JSON payloads.
func (s *PostgresStore) ListAuditEvents(ctx context.Context, orgID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, org_id, actor_user_id, event_type, details, ip, user_agent, created_at FROM audit_events`
	args := []interface{}{}
	if orgID != "" {
		query += ` WHERE org_id = $1`
		args = append(args, orgID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e       domain.AuditEvent
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.OrgID, &e.ActorUserID, &e.Type, &details, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Details = domain.RawAuditDetails(details)
		events = append(events, e)
	}

	if events == nil {
		events = []domain.AuditEvent{}
	}
	return events, nil
}
