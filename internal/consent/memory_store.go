package consent

import (
	"context"
	"sync"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/model"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
)

// MemoryStore is an in-process repo.ConsentRepository. A transition and its
// event are written under one lock, matching the Postgres transaction.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.ConsentRecord
	events  []model.ConsentEvent
}

var _ repo.ConsentRepository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ConsentRecord)}
}

func storeKey(tenantID, phone string) string {
	return tenantID + "\x00" + phone
}

func (s *MemoryStore) GetConsent(ctx context.Context, tenantID, phone string) (model.ConsentRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ConsentRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[storeKey(tenantID, phone)]; ok {
		return rec, nil
	}
	return model.ConsentRecord{TenantID: tenantID, Phone: phone, State: compliance.Subscribed}, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, rec model.ConsentRecord, expectedVersion int64, ev model.ConsentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(rec.TenantID, rec.Phone)
	if s.records[key].Version != expectedVersion {
		return repo.ErrVersionConflict
	}
	rec.Version = expectedVersion + 1
	rec.UpdatedAt = time.Now().UTC()
	s.records[key] = rec
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) AppendConsentEvent(ctx context.Context, ev model.ConsentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of every appended event in order.
func (s *MemoryStore) Events() []model.ConsentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ConsentEvent, len(s.events))
	copy(out, s.events)
	return out
}
