package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "pfascert/pkg/domain"
	"pfascert/pkg/platform/sentinel"
)

// PostgresStore reads catalog data from the shared product database. It
// satisfies every catalog store interface; callers pass the same instance for
// each dependency.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, productID id.ProductID) (Product, error) {
	const q = `SELECT id, name, brand, risk_flagged FROM products WHERE id = $1`
	var p Product
	var rawID uuid.UUID
	err := s.db.QueryRowContext(ctx, q, uuid.UUID(productID)).Scan(&rawID, &p.Name, &p.Brand, &p.RiskFlagged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, sentinel.ErrNotFound
		}
		return Product{}, fmt.Errorf("find product by id: %w", err)
	}
	p.ID = id.ProductID(rawID)
	return p, nil
}

func (s *PostgresStore) FindByProductID(ctx context.Context, productID id.ProductID) ([]Component, error) {
	const q = `
		SELECT id, product_id, name, food_contact,
		       COALESCE(material_id, ''), COALESCE(coating_id, ''),
		       risk_flagged, coating_needed
		FROM components WHERE product_id = $1 ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q, uuid.UUID(productID))
	if err != nil {
		return nil, fmt.Errorf("find components by product: %w", err)
	}
	defer rows.Close()

	var components []Component
	for rows.Next() {
		var c Component
		var rawID, rawProductID uuid.UUID
		if err := rows.Scan(&rawID, &rawProductID, &c.Name, &c.FoodContact,
			&c.MaterialID, &c.CoatingID, &c.RiskFlagged, &c.CoatingNeeded); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		c.ID = id.ComponentID(rawID)
		c.ProductID = id.ProductID(rawProductID)
		components = append(components, c)
	}
	return components, rows.Err()
}

// RiskTerms returns a RiskTermStore view backed by the same connection.
func (s *PostgresStore) RiskTerms() RiskTermStore { return pgRiskTermView{s} }

// History returns a VerificationHistoryStore view.
func (s *PostgresStore) History() VerificationHistoryStore { return pgHistoryView{s} }

// Reviews returns a NextReviewStore view.
func (s *PostgresStore) Reviews() NextReviewStore { return pgReviewView{s} }

type pgRiskTermView struct{ s *PostgresStore }

func (v pgRiskTermView) FindByProductID(ctx context.Context, productID id.ProductID) ([]RiskTerm, error) {
	const q = `SELECT id, product_id, term, resolved FROM risk_terms WHERE product_id = $1`
	rows, err := v.s.db.QueryContext(ctx, q, uuid.UUID(productID))
	if err != nil {
		return nil, fmt.Errorf("find risk terms by product: %w", err)
	}
	defer rows.Close()

	var terms []RiskTerm
	for rows.Next() {
		var t RiskTerm
		var rawProductID uuid.UUID
		if err := rows.Scan(&t.ID, &rawProductID, &t.Term, &t.Resolved); err != nil {
			return nil, fmt.Errorf("scan risk term: %w", err)
		}
		t.ProductID = id.ProductID(rawProductID)
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

type pgHistoryView struct{ s *PostgresStore }

func (v pgHistoryView) FindByProductID(ctx context.Context, productID id.ProductID) ([]VerificationRecord, error) {
	const q = `
		SELECT id, product_id, tier, verified_at, verified_by
		FROM verification_history WHERE product_id = $1 ORDER BY verified_at DESC`
	rows, err := v.s.db.QueryContext(ctx, q, uuid.UUID(productID))
	if err != nil {
		return nil, fmt.Errorf("find verification history: %w", err)
	}
	defer rows.Close()

	var records []VerificationRecord
	for rows.Next() {
		var r VerificationRecord
		var rawProductID uuid.UUID
		if err := rows.Scan(&r.ID, &rawProductID, &r.Tier, &r.VerifiedAt, &r.VerifiedBy); err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		r.ProductID = id.ProductID(rawProductID)
		records = append(records, r)
	}
	return records, rows.Err()
}

type pgReviewView struct{ s *PostgresStore }

func (v pgReviewView) FindByProductID(ctx context.Context, productID id.ProductID) (NextReview, error) {
	const q = `SELECT product_id, due_at FROM next_reviews WHERE product_id = $1`
	var r NextReview
	var rawProductID uuid.UUID
	err := v.s.db.QueryRowContext(ctx, q, uuid.UUID(productID)).Scan(&rawProductID, &r.DueAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NextReview{}, sentinel.ErrNotFound
		}
		return NextReview{}, fmt.Errorf("find next review: %w", err)
	}
	r.ProductID = id.ProductID(rawProductID)
	return r, nil
}
