package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pfascert/internal/evidence/models"
	id "pfascert/pkg/domain"
	"pfascert/pkg/platform/sentinel"
)

// PostgresStore persists evidence in PostgreSQL. The schema carries a unique
// index on sha256_hash and a composite primary key on the link table, so the
// duplicate and conflict invariants hold even under concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed evidence store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const evidenceColumns = `
	id, type, source, storage_uri, sha256_hash, file_size_bytes, mime_type,
	original_filename, received_at, expires_at, metadata, status,
	deleted_at, deletion_reason`

func (s *PostgresStore) Create(ctx context.Context, evidence models.Evidence) error {
	metaBytes, err := models.EncodeMetadata(evidence.Metadata)
	if err != nil {
		return fmt.Errorf("encode evidence metadata: %w", err)
	}

	const q = `
		INSERT INTO evidence (` + evidenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL, '')`
	_, err = s.db.ExecContext(ctx, q,
		uuid.UUID(evidence.ID), string(evidence.Type), evidence.Source,
		evidence.StorageURI, evidence.SHA256Hash, evidence.FileSizeBytes,
		evidence.MIMEType, evidence.OriginalFilename,
		evidence.ReceivedAt.UTC(), evidence.ExpiresAt.UTC(),
		metaBytes, evidence.Status)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			if pqErr.Constraint == "evidence_sha256_hash_key" {
				return sentinel.ErrDuplicate
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error) {
	const q = `SELECT ` + evidenceColumns + ` FROM evidence WHERE id = $1 AND deleted_at IS NULL`
	return s.queryOne(ctx, q, uuid.UUID(evidenceID))
}

func (s *PostgresStore) FindByIDIncludeDeleted(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error) {
	const q = `SELECT ` + evidenceColumns + ` FROM evidence WHERE id = $1`
	return s.queryOne(ctx, q, uuid.UUID(evidenceID))
}

func (s *PostgresStore) FindByProductID(ctx context.Context, productID id.ProductID) ([]models.Evidence, error) {
	const q = `
		SELECT ` + evidenceColumns + ` FROM evidence e
		JOIN product_evidence_links l ON l.evidence_id = e.id
		WHERE l.product_id = $1 AND e.deleted_at IS NULL
		ORDER BY e.received_at`
	return s.queryMany(ctx, q, uuid.UUID(productID))
}

func (s *PostgresStore) FindByHash(ctx context.Context, sha256Hash string) (models.Evidence, error) {
	const q = `SELECT ` + evidenceColumns + ` FROM evidence WHERE sha256_hash = $1`
	return s.queryOne(ctx, q, sha256Hash)
}

func (s *PostgresStore) FindExpiringSoon(ctx context.Context, within time.Duration, now time.Time) ([]models.Evidence, error) {
	const q = `
		SELECT ` + evidenceColumns + ` FROM evidence
		WHERE deleted_at IS NULL AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at`
	return s.queryMany(ctx, q, now.UTC(), now.Add(within).UTC())
}

func (s *PostgresStore) FindExpired(ctx context.Context, now time.Time) ([]models.Evidence, error) {
	const q = `
		SELECT ` + evidenceColumns + ` FROM evidence
		WHERE deleted_at IS NULL AND expires_at < $1
		ORDER BY expires_at`
	return s.queryMany(ctx, q, now.UTC())
}

func (s *PostgresStore) SoftDelete(ctx context.Context, evidenceID id.EvidenceID, reason string, at time.Time) error {
	// The deleted_at IS NULL guard makes concurrent deletes serialize at the
	// row: the loser updates zero rows and must distinguish missing from
	// already deleted.
	const q = `
		UPDATE evidence SET deleted_at = $2, deletion_reason = $3
		WHERE id = $1 AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, uuid.UUID(evidenceID), at.UTC(), reason)
	if err != nil {
		return fmt.Errorf("soft delete evidence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete evidence: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByIDIncludeDeleted(ctx, evidenceID); err != nil {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrAlreadyDeleted
	}
	return nil
}

func (s *PostgresStore) LinkToProduct(ctx context.Context, link models.ProductLink) error {
	var componentID any
	if link.ComponentID != nil {
		componentID = uuid.UUID(*link.ComponentID)
	}
	const q = `
		INSERT INTO product_evidence_links (product_id, evidence_id, component_id, added_at, added_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, q,
		uuid.UUID(link.ProductID), uuid.UUID(link.EvidenceID), componentID,
		link.AddedAt.UTC(), link.AddedBy, link.Notes)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return sentinel.ErrConflict
			case "foreign_key_violation":
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("link evidence to product: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnlinkFromProduct(ctx context.Context, evidenceID id.EvidenceID, productID id.ProductID) error {
	const q = `DELETE FROM product_evidence_links WHERE evidence_id = $1 AND product_id = $2`
	res, err := s.db.ExecContext(ctx, q, uuid.UUID(evidenceID), uuid.UUID(productID))
	if err != nil {
		return fmt.Errorf("unlink evidence from product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink evidence from product: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, page Page) ([]models.Evidence, error) {
	q := `SELECT ` + evidenceColumns + ` FROM evidence WHERE deleted_at IS NULL`
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		q += ` AND type = ` + next(string(filter.Type))
	}
	if filter.Source != "" {
		q += ` AND source = ` + next(filter.Source)
	}
	now := time.Now().UTC()
	if !filter.IncludeExpired {
		q += ` AND (expires_at IS NULL OR expires_at >= ` + next(now) + `)`
	}
	if filter.ExpiringWithinDays > 0 {
		q += ` AND expires_at <= ` + next(now.AddDate(0, 0, filter.ExpiringWithinDays))
	}

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q += ` ORDER BY received_at` +
		` LIMIT ` + next(limit) +
		` OFFSET ` + next(max(page.Offset, 0))

	return s.queryMany(ctx, q, args...)
}

func (s *PostgresStore) queryOne(ctx context.Context, q string, args ...any) (models.Evidence, error) {
	row := s.db.QueryRowContext(ctx, q, args...)
	ev, err := scanEvidence(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Evidence{}, sentinel.ErrNotFound
		}
		return models.Evidence{}, err
	}
	return ev, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, q string, args ...any) ([]models.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var out []models.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvidence(scan func(dest ...any) error) (models.Evidence, error) {
	var (
		ev        models.Evidence
		rawID     uuid.UUID
		typ       string
		metaBytes []byte
		deletedAt sql.NullTime
	)
	err := scan(&rawID, &typ, &ev.Source, &ev.StorageURI, &ev.SHA256Hash,
		&ev.FileSizeBytes, &ev.MIMEType, &ev.OriginalFilename,
		&ev.ReceivedAt, &ev.ExpiresAt, &metaBytes, &ev.Status,
		&deletedAt, &ev.DeletionReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Evidence{}, err
		}
		return models.Evidence{}, fmt.Errorf("scan evidence: %w", err)
	}
	ev.ID = id.EvidenceID(rawID)
	ev.Type = models.Type(typ)
	if deletedAt.Valid {
		t := deletedAt.Time
		ev.DeletedAt = &t
	}
	meta, err := models.DecodeMetadata(ev.Type, json.RawMessage(metaBytes))
	if err != nil {
		return models.Evidence{}, fmt.Errorf("decode stored metadata for %s: %w", ev.ID, err)
	}
	ev.Metadata = meta
	return ev, nil
}
