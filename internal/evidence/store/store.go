// Package store persists evidence rows and their product links. The store
// exposes no update operation for storage URI, hash, or payload fields;
// immutability of the evidentiary record is enforced by the interface shape,
// not by caller discipline. The only mutations are soft delete and link
// management.
package store

import (
	"context"
	"time"

	"pfascert/internal/evidence/models"
	id "pfascert/pkg/domain"
)

// Filter narrows List results.
type Filter struct {
	Type               models.Type
	Source             string
	ExpiringWithinDays int
	IncludeExpired     bool
}

// Page bounds List results. Zero Limit falls back to DefaultPageSize.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageSize bounds unpaginated list calls.
const DefaultPageSize = 50

// Store is implemented by the memory and postgres backends. All lookups that
// do not say otherwise exclude soft-deleted rows. Implementations translate
// driver errors into pkg/platform/sentinel values.
type Store interface {
	// Create inserts a new evidence row. A row with the same content hash
	// already present fails with sentinel.ErrDuplicate.
	Create(ctx context.Context, evidence models.Evidence) error

	FindByID(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error)
	FindByIDIncludeDeleted(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error)
	FindByProductID(ctx context.Context, productID id.ProductID) ([]models.Evidence, error)

	// FindByHash serves upload dedup. Matches soft-deleted rows too: the
	// content still exists and must not be re-registered.
	FindByHash(ctx context.Context, sha256Hash string) (models.Evidence, error)

	FindExpiringSoon(ctx context.Context, within time.Duration, now time.Time) ([]models.Evidence, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.Evidence, error)

	// SoftDelete marks the row deleted. Concurrent callers serialize; the
	// loser observes sentinel.ErrAlreadyDeleted.
	SoftDelete(ctx context.Context, evidenceID id.EvidenceID, reason string, at time.Time) error

	// LinkToProduct fails with sentinel.ErrConflict when the link already
	// exists and sentinel.ErrNotFound when the evidence does not.
	LinkToProduct(ctx context.Context, link models.ProductLink) error
	UnlinkFromProduct(ctx context.Context, evidenceID id.EvidenceID, productID id.ProductID) error

	List(ctx context.Context, filter Filter, page Page) ([]models.Evidence, error)
}
