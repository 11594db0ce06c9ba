package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/google/uuid"
)

// MemoryClaimStore is an in-memory ClaimStore for tests and DB-less
// development.
type MemoryClaimStore struct {
	mu     sync.RWMutex
	claims map[string]*domain.Claim
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{claims: make(map[string]*domain.Claim)}
}

func (s *MemoryClaimStore) CreateClaim(ctx context.Context, claim *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.ID]; exists {
		return fmt.Errorf("claim %s already exists", claim.ID)
	}
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now
	c := *claim
	s.claims[claim.ID] = &c
	return nil
}

func (s *MemoryClaimStore) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, nil
	}
	c := *claim
	return &c, nil
}

func (s *MemoryClaimStore) UpdateClaim(ctx context.Context, claim *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[claim.ID]; !ok {
		return fmt.Errorf("claim %s not found", claim.ID)
	}
	claim.UpdatedAt = time.Now().UTC()
	c := *claim
	s.claims[claim.ID] = &c
	return nil
}

func (s *MemoryClaimStore) ListInFlight(ctx context.Context, insurerIDs []string) ([]domain.Claim, error) {
	wanted := make(map[string]struct{}, len(insurerIDs))
	for _, id := range insurerIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := []domain.Claim{}
	for _, claim := range s.claims {
		if _, ok := wanted[claim.InsurerID]; !ok {
			continue
		}
		if !claim.Status.InFlight() || claim.ExternalID == nil {
			continue
		}
		claims = append(claims, *claim)
	}
	return claims, nil
}

// MemoryAuditStore is an in-memory append-only AuditStore.
type MemoryAuditStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) CreateAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryAuditStore) ListAuditEvents(ctx context.Context, orgID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events := []domain.AuditEvent{}
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if orgID != "" && s.events[i].OrgID != orgID {
			continue
		}
		events = append(events, s.events[i])
	}
	return events, nil
}

// EventsOfType returns all recorded events of the given type, oldest first.
// Test helper.
func (s *MemoryAuditStore) EventsOfType(t domain.AuditEventType) []domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
