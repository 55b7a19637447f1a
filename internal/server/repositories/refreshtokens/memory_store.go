package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/petauth/internal/server/models"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]models.RefreshRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]models.RefreshRecord)}
}

func (s *MemoryStore) Put(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = models.RefreshRecord{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*models.RefreshRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
