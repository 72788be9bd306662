package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pfascert/internal/evidence/models"
	id "pfascert/pkg/domain"
	"pfascert/pkg/platform/sentinel"
)

type linkKey struct {
	evidenceID id.EvidenceID
	productID  id.ProductID
}

// InMemoryStore holds evidence rows and links under one mutex, which also
// serializes concurrent soft-deletes on the same row.
type InMemoryStore struct {
	mu       sync.RWMutex
	evidence map[id.EvidenceID]models.Evidence
	byHash   map[string]id.EvidenceID
	links    map[linkKey]models.ProductLink
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		evidence: make(map[id.EvidenceID]models.Evidence),
		byHash:   make(map[string]id.EvidenceID),
		links:    make(map[linkKey]models.ProductLink),
	}
}

func (s *InMemoryStore) Create(_ context.Context, evidence models.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[evidence.SHA256Hash]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.evidence[evidence.ID]; exists {
		return sentinel.ErrConflict
	}
	s.evidence[evidence.ID] = evidence
	s.byHash[evidence.SHA256Hash] = evidence.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, evidenceID id.EvidenceID) (models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evidence[evidenceID]
	if !ok || ev.Deleted() {
		return models.Evidence{}, sentinel.ErrNotFound
	}
	return ev, nil
}

func (s *InMemoryStore) FindByIDIncludeDeleted(_ context.Context, evidenceID id.EvidenceID) (models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evidence[evidenceID]
	if !ok {
		return models.Evidence{}, sentinel.ErrNotFound
	}
	return ev, nil
}

func (s *InMemoryStore) FindByProductID(_ context.Context, productID id.ProductID) ([]models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Evidence
	for key, link := range s.links {
		if link.ProductID != productID {
			continue
		}
		if ev, ok := s.evidence[key.evidenceID]; ok && !ev.Deleted() {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, sha256Hash string) (models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evidenceID, ok := s.byHash[sha256Hash]
	if !ok {
		return models.Evidence{}, sentinel.ErrNotFound
	}
	return s.evidence[evidenceID], nil
}

func (s *InMemoryStore) FindExpiringSoon(_ context.Context, within time.Duration, now time.Time) ([]models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threshold := now.Add(within)
	var out []models.Evidence
	for _, ev := range s.evidence {
		if ev.Deleted() || ev.ExpiresAt.IsZero() {
			continue
		}
		if ev.ExpiresAt.After(now) && !ev.ExpiresAt.After(threshold) {
			out = append(out, ev)
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (s *InMemoryStore) FindExpired(_ context.Context, now time.Time) ([]models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Evidence
	for _, ev := range s.evidence {
		if ev.Deleted() {
			continue
		}
		if ev.Expired(now) {
			out = append(out, ev)
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, evidenceID id.EvidenceID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.evidence[evidenceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if ev.Deleted() {
		return sentinel.ErrAlreadyDeleted
	}
	deletedAt := at
	ev.DeletedAt = &deletedAt
	ev.DeletionReason = reason
	s.evidence[evidenceID] = ev
	return nil
}

func (s *InMemoryStore) LinkToProduct(_ context.Context, link models.ProductLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.evidence[link.EvidenceID]
	if !ok || ev.Deleted() {
		return sentinel.ErrNotFound
	}
	key := linkKey{evidenceID: link.EvidenceID, productID: link.ProductID}
	if _, exists := s.links[key]; exists {
		return sentinel.ErrConflict
	}
	s.links[key] = link
	return nil
}

func (s *InMemoryStore) UnlinkFromProduct(_ context.Context, evidenceID id.EvidenceID, productID id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey{evidenceID: evidenceID, productID: productID}
	if _, exists := s.links[key]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.links, key)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter, page Page) ([]models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var matched []models.Evidence
	for _, ev := range s.evidence {
		if ev.Deleted() {
			continue
		}
		if filter.Type != "" && ev.Type != filter.Type {
			continue
		}
		if filter.Source != "" && ev.Source != filter.Source {
			continue
		}
		if !filter.IncludeExpired && ev.Expired(now) {
			continue
		}
		if filter.ExpiringWithinDays > 0 {
			threshold := now.AddDate(0, 0, filter.ExpiringWithinDays)
			if ev.ExpiresAt.IsZero() || ev.ExpiresAt.After(threshold) {
				continue
			}
		}
		matched = append(matched, ev)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ReceivedAt.Before(matched[j].ReceivedAt) })

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset := max(page.Offset, 0)
	if offset >= len(matched) {
		return nil, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func sortByExpiry(evs []models.Evidence) {
	sort.Slice(evs, func(i, j int) bool { return evs[i].ExpiresAt.Before(evs[j].ExpiresAt) })
}
