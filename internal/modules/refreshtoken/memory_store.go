package refreshtoken

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"learnhub/internal/domain"
)

var errDuplicateID = errors.New("refresh token id already exists")

// MemoryStore is a process-local Store. Records are copied on the way in and
// out so callers never share state with the map.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]domain.RefreshToken),
		now:    time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, t *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[t.ID]; ok {
		return errDuplicateID
	}
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.tokens[t.ID] = *t
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) FindActiveByUser(_ context.Context, userID int64) ([]domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RefreshToken, 0)
	for _, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RevokeByID(_ context.Context, id string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	if !t.Revoked {
		t.Revoked = true
		t.UpdatedAt = s.now().UTC()
		s.tokens[id] = t
	}
	return &t, nil
}

func (s *MemoryStore) RevokeIfActive(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.UpdatedAt = s.now().UTC()
	s.tokens[id] = t
	return true, nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for id, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.UpdatedAt = now
			s.tokens[id] = t
		}
	}
	return nil
}

func (s *MemoryStore) UpdateHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil
	}
	t.TokenHash = hash
	t.UpdatedAt = s.now().UTC()
	s.tokens[id] = t
	return nil
}
