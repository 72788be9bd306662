package catalog

import (
	"context"

	id "pfascert/pkg/domain"
)

// Stores are interface-driven to keep the engine testable and to allow
// swapping in-memory, SQL, or external persistence without rewiring business
// code. All five are read-only from this module's point of view.

type ProductStore interface {
	FindByID(ctx context.Context, productID id.ProductID) (Product, error)
}

type ComponentStore interface {
	FindByProductID(ctx context.Context, productID id.ProductID) ([]Component, error)
}

type RiskTermStore interface {
	FindByProductID(ctx context.Context, productID id.ProductID) ([]RiskTerm, error)
}

type VerificationHistoryStore interface {
	FindByProductID(ctx context.Context, productID id.ProductID) ([]VerificationRecord, error)
}

type NextReviewStore interface {
	// FindByProductID returns sentinel.ErrNotFound when no review is scheduled.
	FindByProductID(ctx context.Context, productID id.ProductID) (NextReview, error)
}
