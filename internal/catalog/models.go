// Package catalog exposes read-only views of the product catalog: products,
// their components, unresolved risk terms, verification history, and review
// scheduling. The verification engine consumes these through the store
// interfaces; nothing in this repository mutates them.
package catalog

import (
	"time"

	id "pfascert/pkg/domain"
)

// Product is the certification subject.
type Product struct {
	ID          id.ProductID
	Name        string
	Brand       string
	RiskFlagged bool
}

// Component is a physical part of a product. Food-contact components are
// subject to stricter documentation requirements.
type Component struct {
	ID            id.ComponentID
	ProductID     id.ProductID
	Name          string
	FoodContact   bool
	MaterialID    string
	CoatingID     string
	RiskFlagged   bool
	CoatingNeeded bool
}

// RiskTerm is a flagged marketing or ingredient term attached to a product.
// Unresolved terms block Policy Reviewed certification.
type RiskTerm struct {
	ID        string
	ProductID id.ProductID
	Term      string
	Resolved  bool
}

// VerificationRecord captures a completed verification run.
type VerificationRecord struct {
	ID         string
	ProductID  id.ProductID
	Tier       int
	VerifiedAt time.Time
	VerifiedBy string
}

// NextReview is the scheduled re-verification date for a product.
type NextReview struct {
	ProductID id.ProductID
	DueAt     time.Time
}
