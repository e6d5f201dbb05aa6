package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/google/uuid"
)

// MemoryRestrictionStore is an in-process RestrictionStore for tests and
// single-instance development. Records are kept sorted by created_at, id.
type MemoryRestrictionStore struct {
	mu      sync.Mutex
	records []domain.Restriction
}

// NewMemoryRestrictionStore creates an empty in-memory store.
func NewMemoryRestrictionStore() *MemoryRestrictionStore {
	return &MemoryRestrictionStore{}
}

func (s *MemoryRestrictionStore) Count(_ context.Context, f RestrictionFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.records {
		if f.Matches(&s.records[i]) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryRestrictionStore) Find(_ context.Context, f RestrictionFilter, limit, skip int) ([]domain.Restriction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Restriction
	skipped := 0
	for i := range s.records {
		if !f.Matches(&s.records[i]) {
			continue
		}
		if skipped < skip {
			skipped++
			continue
		}
		out = append(out, copyRestriction(s.records[i]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryRestrictionStore) InsertOne(_ context.Context, r *domain.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	for i := range s.records {
		existing := &s.records[i]
		if existing.Type == r.Type && existing.Value == r.Value {
			existing.ExpiresAt = r.ExpiresAt
			existing.CreatedAt = r.CreatedAt
			*r = copyRestriction(*existing)
			s.sortLocked()
			return nil
		}
	}
	s.records = append(s.records, copyRestriction(*r))
	s.sortLocked()
	return nil
}

func (s *MemoryRestrictionStore) FindOneAndDelete(_ context.Context, f RestrictionFilter) (*domain.Restriction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if f.Matches(&s.records[i]) {
			removed := s.records[i]
			s.records = append(s.records[:i], s.records[i+1:]...)
			return &removed, nil
		}
	}
	return nil, nil
}

func (s *MemoryRestrictionStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryRestrictionStore) sortLocked() {
	sort.SliceStable(s.records, func(i, j int) bool {
		a, b := s.records[i], s.records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func copyRestriction(r domain.Restriction) domain.Restriction {
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		r.ExpiresAt = &t
	}
	return r
}
