package catalog

import (
	"context"
	"sync"

	id "pfascert/pkg/domain"
	"pfascert/pkg/platform/sentinel"
)

// InMemoryStore satisfies all catalog store interfaces from seeded fixtures.
// Production deployments point the engine at the catalog database instead.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[id.ProductID]Product
	// Keyed by product so FindByProductID stays O(components of one product).
	components map[id.ProductID][]Component
	riskTerms  map[id.ProductID][]RiskTerm
	history    map[id.ProductID][]VerificationRecord
	reviews    map[id.ProductID]NextReview
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products:   make(map[id.ProductID]Product),
		components: make(map[id.ProductID][]Component),
		riskTerms:  make(map[id.ProductID][]RiskTerm),
		history:    make(map[id.ProductID][]VerificationRecord),
		reviews:    make(map[id.ProductID]NextReview),
	}
}

// SeedProduct registers a product with its components and risk terms.
func (s *InMemoryStore) SeedProduct(product Product, components []Component, terms []RiskTerm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	s.components[product.ID] = append([]Component(nil), components...)
	s.riskTerms[product.ID] = append([]RiskTerm(nil), terms...)
}

// SeedHistory appends a verification record.
func (s *InMemoryStore) SeedHistory(record VerificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[record.ProductID] = append(s.history[record.ProductID], record)
}

// SeedNextReview schedules a review date.
func (s *InMemoryStore) SeedNextReview(review NextReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.ProductID] = review
}

func (s *InMemoryStore) FindByID(_ context.Context, productID id.ProductID) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[productID]; ok {
		return p, nil
	}
	return Product{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByProductID(_ context.Context, productID id.ProductID) ([]Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Component(nil), s.components[productID]...), nil
}

// RiskTerms returns a RiskTermStore view over the same fixtures. Needed
// because FindByProductID cannot overload by return type.
func (s *InMemoryStore) RiskTerms() RiskTermStore { return riskTermView{s} }

// History returns a VerificationHistoryStore view.
func (s *InMemoryStore) History() VerificationHistoryStore { return historyView{s} }

// Reviews returns a NextReviewStore view.
func (s *InMemoryStore) Reviews() NextReviewStore { return reviewView{s} }

type riskTermView struct{ s *InMemoryStore }

func (v riskTermView) FindByProductID(_ context.Context, productID id.ProductID) ([]RiskTerm, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return append([]RiskTerm(nil), v.s.riskTerms[productID]...), nil
}

type historyView struct{ s *InMemoryStore }

func (v historyView) FindByProductID(_ context.Context, productID id.ProductID) ([]VerificationRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return append([]VerificationRecord(nil), v.s.history[productID]...), nil
}

type reviewView struct{ s *InMemoryStore }

func (v reviewView) FindByProductID(_ context.Context, productID id.ProductID) (NextReview, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if r, ok := v.s.reviews[productID]; ok {
		return r, nil
	}
	return NextReview{}, sentinel.ErrNotFound
}
