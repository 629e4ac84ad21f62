package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the full dataset behind one mutex. It backs the service
// tests and small single-node deployments where Postgres is overkill.
type MemoryStore struct {
	mu       sync.Mutex
	tenders  map[string]TenderRecord
	supports map[string]SupportRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenders:  make(map[string]TenderRecord),
		supports: make(map[string]SupportRequest),
	}
}

func (s *MemoryStore) ListTenders(ctx context.Context) ([]TenderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]TenderRecord, 0, len(s.tenders))
	for _, item := range s.tenders {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}

func (s *MemoryStore) GetTender(ctx context.Context, key string) (TenderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tenders[key]
	if !ok {
		return TenderRecord{}, sql.ErrNoRows
	}
	return item, nil
}

func (s *MemoryStore) InsertTender(ctx context.Context, item TenderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	s.tenders[item.Key] = item
	return nil
}

func (s *MemoryStore) UpdateTenderFields(ctx context.Context, key string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tenders[key]
	if !ok {
		return false, nil
	}
	item.ApplyFields(fields)
	item.UpdatedAt = time.Now().UTC()
	s.tenders[key] = item
	return true, nil
}

func (s *MemoryStore) UpdateTenderStatus(ctx context.Context, key, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tenders[key]
	if !ok {
		return false, nil
	}
	item.Status = status
	item.UpdatedAt = time.Now().UTC()
	s.tenders[key] = item
	return true, nil
}

func (s *MemoryStore) DeleteTender(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenders[key]; !ok {
		return false, nil
	}
	delete(s.tenders, key)
	return true, nil
}

func (s *MemoryStore) ListSupportRequests(ctx context.Context) ([]SupportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]SupportRequest, 0, len(s.supports))
	for _, item := range s.supports {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) GetSupportRequest(ctx context.Context, id string) (SupportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.supports[id]
	if !ok {
		return SupportRequest{}, sql.ErrNoRows
	}
	return item, nil
}

func (s *MemoryStore) InsertSupportRequest(ctx context.Context, item SupportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	s.supports[item.ID] = item
	return nil
}

func (s *MemoryStore) UpdateSupportRequest(ctx context.Context, item SupportRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.supports[item.ID]
	if !ok {
		return false, nil
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	s.supports[item.ID] = item
	return true, nil
}

func (s *MemoryStore) DeleteSupportRequest(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.supports[id]; !ok {
		return false, nil
	}
	delete(s.supports, id)
	return true, nil
}

func (s *MemoryStore) SummaryCounts(ctx context.Context) (total int, withSupport int, letterSent int, open int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.tenders {
		total++
		if item.RequestedSupport {
			withSupport++
		}
		if item.LetterSent {
			letterSent++
		}
		if item.Status == "Open" {
			open++
		}
	}
	return
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
