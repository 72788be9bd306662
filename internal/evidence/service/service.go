// Package service orchestrates the evidence pipeline: validated, hash-first
// uploads into WORM storage, verified artifact retrieval, expiry queries, and
// guarded soft deletion. Ordering is load-bearing: the content hash is
// computed before any write, the storage write precedes the repository
// record, and a failure at any step leaves no repository record behind.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pfascert/internal/audit"
	"pfascert/internal/blob"
	"pfascert/internal/evidence/metrics"
	"pfascert/internal/evidence/models"
	evstore "pfascert/internal/evidence/store"
	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
	"pfascert/pkg/integrity"
	"pfascert/pkg/platform/sentinel"
	"pfascert/pkg/requestcontext"
)

// DefaultExpiryWindowDays is the "expiring soon" horizon when the caller does
// not supply one.
const DefaultExpiryWindowDays = 30

const entityTypeEvidence = "evidence"

// Service wires the evidence store, WORM blob storage, and the audit trail.
type Service struct {
	store   evstore.Store
	blobs   blob.Store
	auditor audit.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the evidence service.
func New(store evstore.Store, blobs blob.Store, auditor audit.Logger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		blobs:   blobs,
		auditor: auditor,
		logger:  logger,
		tracer:  otel.Tracer("pfascert/evidence"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRequest carries one evidence submission.
type UploadRequest struct {
	Content    []byte
	Filename   string
	MIMEType   string
	Type       models.Type
	Source     string
	Metadata   json.RawMessage
	ProductID  *id.ProductID
	UploadedBy string
}

// UploadResult echoes the created record.
type UploadResult struct {
	EvidenceID  id.EvidenceID
	ArtifactURL string
	SHA256Hash  string
	Status      string
	CreatedAt   time.Time
}

// Upload runs the strict pipeline: validate size and MIME, validate metadata
// against the type schema, hash before any storage write, reject known
// hashes, write to WORM storage, then and only then create the repository
// record, optionally link, and audit.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.Upload")
	defer span.End()
	start := s.now()

	if err := s.validateUpload(req); err != nil {
		s.metrics.IncrementUpload(string(req.Type), "rejected")
		return UploadResult{}, err
	}
	meta, err := models.DecodeMetadata(req.Type, req.Metadata)
	if err != nil {
		s.metrics.IncrementUpload(string(req.Type), "rejected")
		return UploadResult{}, err
	}

	// Hash before any write so the digest can never describe partially
	// stored content.
	sha256Hash := integrity.Digest(req.Content)

	if existing, err := s.store.FindByHash(ctx, sha256Hash); err == nil {
		s.metrics.IncrementUpload(string(req.Type), "duplicate")
		return UploadResult{}, dErrors.Newf(dErrors.CodeDuplicateEvidence,
			"content already registered as evidence %s", existing.ID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return UploadResult{}, dErrors.Wrap(dErrors.CodeInternal, "duplicate check failed", err)
	}

	evidenceID := id.NewEvidenceID()
	now := s.now().UTC()
	retainUntil := now.AddDate(0, req.Type.ExpiryMonths(), 0)

	put, err := s.blobs.Put(ctx, "evidence/"+evidenceID.String(), req.Content, req.MIMEType,
		map[string]string{
			"evidence_type": string(req.Type),
			"sha256":        sha256Hash,
			"filename":      req.Filename,
		},
		blob.LockCompliance, retainUntil)
	if err != nil {
		s.metrics.IncrementUpload(string(req.Type), "storage_error")
		return UploadResult{}, dErrors.Wrap(dErrors.CodeStorageUnavailable, "storage write failed", err)
	}

	evidence := models.Evidence{
		ID:               evidenceID,
		Type:             req.Type,
		Source:           req.Source,
		StorageURI:       put.URI,
		SHA256Hash:       sha256Hash,
		FileSizeBytes:    int64(len(req.Content)),
		MIMEType:         req.MIMEType,
		OriginalFilename: req.Filename,
		ReceivedAt:       now,
		ExpiresAt:        retainUntil,
		Metadata:         meta,
		Status:           models.StatusPendingReview,
	}
	if err := s.store.Create(ctx, evidence); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			// Lost a race with an identical concurrent upload. The stored
			// object is orphaned but locked; report the winner.
			if existing, findErr := s.store.FindByHash(ctx, sha256Hash); findErr == nil {
				s.metrics.IncrementUpload(string(req.Type), "duplicate")
				return UploadResult{}, dErrors.Newf(dErrors.CodeDuplicateEvidence,
					"content already registered as evidence %s", existing.ID)
			}
		}
		return UploadResult{}, dErrors.Wrap(dErrors.CodeInternal, "record evidence", err)
	}

	if req.ProductID != nil {
		link := models.ProductLink{
			ProductID:  *req.ProductID,
			EvidenceID: evidenceID,
			AddedAt:    now,
			AddedBy:    req.UploadedBy,
		}
		if err := s.store.LinkToProduct(ctx, link); err != nil {
			// The evidence row is valid without the link; surface the
			// failure but keep the upload.
			s.logger.ErrorContext(ctx, "upload link failed",
				"evidence_id", evidenceID,
				"product_id", req.ProductID,
				"error", err,
			)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Actor:      req.UploadedBy,
		Action:     audit.ActionEvidenceUploaded,
		EntityType: entityTypeEvidence,
		EntityID:   evidenceID.String(),
		NewValues: map[string]any{
			"type":        string(req.Type),
			"source":      req.Source,
			"sha256_hash": sha256Hash,
			"storage_uri": put.URI,
			"expires_at":  retainUntil.Format(time.RFC3339),
		},
	})

	s.metrics.IncrementUpload(string(req.Type), "ok")
	s.metrics.ObserveUploadLatency(s.now().Sub(start))
	s.logger.InfoContext(ctx, "evidence uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"evidence_id", evidenceID,
		"type", req.Type,
		"size_bytes", len(req.Content),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return UploadResult{
		EvidenceID:  evidenceID,
		ArtifactURL: put.URI,
		SHA256Hash:  sha256Hash,
		Status:      models.StatusPendingReview,
		CreatedAt:   now,
	}, nil
}

func (s *Service) validateUpload(req UploadRequest) error {
	if len(req.Content) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "file content is required")
	}
	if int64(len(req.Content)) > models.MaxFileSizeBytes {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"file exceeds maximum size of %d bytes", int64(models.MaxFileSizeBytes))
	}
	if !models.AllowedMIME(req.MIMEType) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unsupported MIME type %q", req.MIMEType)
	}
	if !req.Type.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown evidence type %q", req.Type)
	}
	if req.Source == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source is required")
	}
	if req.UploadedBy == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "uploaded_by is required")
	}
	return nil
}

// Artifact is a verified payload.
// Get returns the evidence record, excluding soft-deleted rows.
func (s *Service) Get(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error) {
	evidence, err := s.store.FindByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Evidence{}, dErrors.Newf(dErrors.CodeNotFound, "evidence %s not found", evidenceID)
		}
		return models.Evidence{}, dErrors.Wrap(dErrors.CodeInternal, "load evidence", err)
	}
	return evidence, nil
}

type Artifact struct {
	Bytes    []byte
	MIMEType string
	Filename string
	Hash     string
}

// GetArtifact downloads the full object, verifies its digest against the
// stored hash, and only then returns bytes. A mismatch is fatal: audited,
// counted, and surfaced as an integrity failure distinct from not-found.
func (s *Service) GetArtifact(ctx context.Context, evidenceID id.EvidenceID) (Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.GetArtifact")
	defer span.End()

	evidence, err := s.store.FindByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementArtifactRead("not_found")
			return Artifact{}, dErrors.Newf(dErrors.CodeNotFound, "evidence %s not found", evidenceID)
		}
		return Artifact{}, dErrors.Wrap(dErrors.CodeInternal, "load evidence", err)
	}

	rc, err := s.blobs.Get(ctx, evidence.StorageURI)
	if err != nil {
		s.metrics.IncrementArtifactRead("storage_error")
		return Artifact{}, dErrors.Wrap(dErrors.CodeStorageUnavailable, "storage read failed", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.metrics.IncrementArtifactRead("storage_error")
		return Artifact{}, dErrors.Wrap(dErrors.CodeStorageUnavailable, "storage read failed", err)
	}

	if err := integrity.Verify(data, evidence.SHA256Hash); err != nil {
		s.metrics.IncrementArtifactRead("integrity_failure")
		s.metrics.IncrementIntegrityFailure()
		s.logger.ErrorContext(ctx, "artifact integrity failure",
			"request_id", requestcontext.RequestID(ctx),
			"evidence_id", evidenceID,
			"storage_uri", evidence.StorageURI,
		)
		s.emitAudit(ctx, audit.Event{
			Action:     audit.ActionIntegrityFailure,
			EntityType: entityTypeEvidence,
			EntityID:   evidenceID.String(),
			Metadata: map[string]any{
				"integrity_failure": true,
				"storage_uri":       evidence.StorageURI,
				"expected_hash":     evidence.SHA256Hash,
			},
		})
		return Artifact{}, dErrors.Newf(dErrors.CodeIntegrityFailure,
			"stored content for evidence %s does not match its recorded hash", evidenceID)
	}

	s.metrics.IncrementArtifactRead("ok")
	return Artifact{
		Bytes:    data,
		MIMEType: evidence.MIMEType,
		Filename: evidence.OriginalFilename,
		Hash:     evidence.SHA256Hash,
	}, nil
}

// SoftDelete marks evidence deleted with a mandatory reason. The row, hash,
// and stored object all survive; only visibility changes.
func (s *Service) SoftDelete(ctx context.Context, evidenceID id.EvidenceID, reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "deletion reason is required")
	}
	now := s.now().UTC()
	if err := s.store.SoftDelete(ctx, evidenceID, reason, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "evidence %s not found", evidenceID)
		case errors.Is(err, sentinel.ErrAlreadyDeleted):
			return dErrors.Newf(dErrors.CodeAlreadyDeleted, "evidence %s is already deleted", evidenceID)
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "soft delete evidence", err)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Actor:      requestcontext.Actor(ctx),
		Action:     audit.ActionEvidenceDeleted,
		EntityType: entityTypeEvidence,
		EntityID:   evidenceID.String(),
		NewValues: map[string]any{
			"deleted_at":      now.Format(time.RFC3339),
			"deletion_reason": reason,
		},
	})
	return nil
}

// Link attaches evidence to a product.
func (s *Service) Link(ctx context.Context, link models.ProductLink) error {
	if link.AddedBy == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "added_by is required")
	}
	if link.AddedAt.IsZero() {
		link.AddedAt = s.now().UTC()
	}
	if err := s.store.LinkToProduct(ctx, link); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Newf(dErrors.CodeNotFound, "evidence %s not found", link.EvidenceID)
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Newf(dErrors.CodeConflict,
				"evidence %s is already linked to product %s", link.EvidenceID, link.ProductID)
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "link evidence", err)
		}
	}
	s.emitAudit(ctx, audit.Event{
		Actor:      link.AddedBy,
		Action:     audit.ActionEvidenceLinked,
		EntityType: entityTypeEvidence,
		EntityID:   link.EvidenceID.String(),
		NewValues:  map[string]any{"product_id": link.ProductID.String(), "notes": link.Notes},
	})
	return nil
}

// Unlink removes a product link without touching the evidence row.
func (s *Service) Unlink(ctx context.Context, evidenceID id.EvidenceID, productID id.ProductID) error {
	if err := s.store.UnlinkFromProduct(ctx, evidenceID, productID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound,
				"no link between evidence %s and product %s", evidenceID, productID)
		}
		return dErrors.Wrap(dErrors.CodeInternal, "unlink evidence", err)
	}
	s.emitAudit(ctx, audit.Event{
		Actor:      requestcontext.Actor(ctx),
		Action:     audit.ActionEvidenceUnlinked,
		EntityType: entityTypeEvidence,
		EntityID:   evidenceID.String(),
		OldValues:  map[string]any{"product_id": productID.String()},
	})
	return nil
}

// ExpiryStatus describes where one evidence record sits in its validity
// window.
type ExpiryStatus struct {
	EvidenceID   id.EvidenceID
	ExpiresAt    time.Time
	Expired      bool
	ExpiringSoon bool
}

// CheckExpiry reports expiry status using the default 30-day window.
func (s *Service) CheckExpiry(ctx context.Context, evidenceID id.EvidenceID) (ExpiryStatus, error) {
	evidence, err := s.store.FindByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ExpiryStatus{}, dErrors.Newf(dErrors.CodeNotFound, "evidence %s not found", evidenceID)
		}
		return ExpiryStatus{}, dErrors.Wrap(dErrors.CodeInternal, "load evidence", err)
	}
	now := s.now()
	return ExpiryStatus{
		EvidenceID:   evidenceID,
		ExpiresAt:    evidence.ExpiresAt,
		Expired:      evidence.Expired(now),
		ExpiringSoon: !evidence.Expired(now) && evidence.ExpiresAt.Before(now.AddDate(0, 0, DefaultExpiryWindowDays)),
	}, nil
}

// GetExpiringSoon lists unexpired evidence that expires within days
// (default DefaultExpiryWindowDays).
func (s *Service) GetExpiringSoon(ctx context.Context, days int) ([]models.Evidence, error) {
	if days <= 0 {
		days = DefaultExpiryWindowDays
	}
	evs, err := s.store.FindExpiringSoon(ctx, time.Duration(days)*24*time.Hour, s.now())
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find expiring evidence", err)
	}
	return evs, nil
}

// GetExpired lists evidence whose validity window has passed.
func (s *Service) GetExpired(ctx context.Context) ([]models.Evidence, error) {
	evs, err := s.store.FindExpired(ctx, s.now())
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find expired evidence", err)
	}
	return evs, nil
}

// List returns a filtered page of evidence.
func (s *Service) List(ctx context.Context, filter evstore.Filter, page evstore.Page) ([]models.Evidence, error) {
	evs, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list evidence", err)
	}
	return evs, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.IPAddress = requestcontext.ClientIP(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Log(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}
