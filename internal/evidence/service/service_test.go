package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfascert/internal/audit"
	"pfascert/internal/blob"
	"pfascert/internal/evidence/models"
	evstore "pfascert/internal/evidence/store"
	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
	"pfascert/pkg/integrity"
)

type fixture struct {
	svc   *Service
	store *evstore.InMemoryStore
	blobs *blob.InMemoryStore
	audit *audit.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := evstore.NewInMemoryStore()
	blobs := blob.NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()
	pub := audit.NewPublisher(auditStore)
	t.Cleanup(pub.Close)

	logger := slog.New(slog.DiscardHandler)
	return &fixture{
		svc:   New(store, blobs, pub, logger),
		store: store,
		blobs: blobs,
		audit: auditStore,
	}
}

func brandStatementUpload(content string) UploadRequest {
	meta, _ := json.Marshal(map[string]any{
		"statement_date": time.Now().UTC().AddDate(0, -1, 0),
		"statement_text": "covers all components",
	})
	return UploadRequest{
		Content:    []byte(content),
		Filename:   "statement.pdf",
		MIMEType:   models.MIMEPDF,
		Type:       models.TypeBrandStatement,
		Source:     "brand-portal",
		Metadata:   meta,
		UploadedBy: "uploader@example.com",
	}
}

func TestUpload_RoundTripIntegrity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, brandStatementUpload("statement body"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, res.Status)
	assert.Equal(t, integrity.Digest([]byte("statement body")), res.SHA256Hash)

	artifact, err := f.svc.GetArtifact(ctx, res.EvidenceID)
	require.NoError(t, err)
	assert.Equal(t, []byte("statement body"), artifact.Bytes)
	assert.Equal(t, res.SHA256Hash, integrity.Digest(artifact.Bytes),
		"fetched bytes hash to the recorded digest")
	assert.Equal(t, models.MIMEPDF, artifact.MIMEType)
	assert.Equal(t, "statement.pdf", artifact.Filename)

	events, err := f.audit.ListByEntity(ctx, "evidence", res.EvidenceID.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionEvidenceUploaded, events[0].Action)
}

func TestUpload_StorageObjectLocked(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Upload(context.Background(), brandStatementUpload("locked body"))
	require.NoError(t, err)

	info, err := f.blobs.Head(context.Background(), res.ArtifactURL)
	require.NoError(t, err)
	assert.Equal(t, blob.LockCompliance, info.LockMode)
	assert.WithinDuration(t,
		time.Now().AddDate(0, models.TypeBrandStatement.ExpiryMonths(), 0),
		info.LockUntil, time.Minute,
		"retention matches the type's expiry window")
}

// Scenario D: oversized or wrong-MIME uploads fail validation before any
// storage or repository write.
func TestUpload_ValidationRejectsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("12MB file", func(t *testing.T) {
		req := brandStatementUpload("x")
		req.Content = make([]byte, 12<<20)
		_, err := f.svc.Upload(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("text/plain MIME", func(t *testing.T) {
		req := brandStatementUpload("y")
		req.MIMEType = "text/plain"
		_, err := f.svc.Upload(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("bad metadata", func(t *testing.T) {
		req := brandStatementUpload("z")
		req.Metadata = json.RawMessage(`{"statement_date":"2026-01-01T00:00:00Z"}`)
		_, err := f.svc.Upload(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	// No repository record, no storage object, for any rejection above.
	evs, err := f.store.List(ctx, evstore.Filter{}, evstore.Page{})
	require.NoError(t, err)
	assert.Empty(t, evs, "no repository record after rejected uploads")
	assert.Empty(t, f.audit.All(), "nothing audited for rejected uploads")
}

// Scenario E: byte-identical content uploads exactly once.
func TestUpload_DuplicateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, brandStatementUpload("identical bytes"))
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, brandStatementUpload("identical bytes"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateEvidence))
	assert.Contains(t, err.Error(), first.EvidenceID.String(),
		"duplicate error references the existing record")

	evs, listErr := f.store.List(ctx, evstore.Filter{}, evstore.Page{})
	require.NoError(t, listErr)
	assert.Len(t, evs, 1, "exactly one row for that hash")
}

// Scenario F: corrupted storage bytes surface as an integrity failure with an
// audit entry, and the stored hash is untouched.
func TestGetArtifact_CorruptedBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, brandStatementUpload("pristine content"))
	require.NoError(t, err)

	f.blobs.Corrupt[res.ArtifactURL] = true

	_, err = f.svc.GetArtifact(ctx, res.EvidenceID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrityFailure))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound),
		"integrity failure is distinct from not found")

	events, err := f.audit.ListByEntity(ctx, "evidence", res.EvidenceID.String())
	require.NoError(t, err)
	var integrityEvents []audit.Event
	for _, e := range events {
		if e.Action == audit.ActionIntegrityFailure {
			integrityEvents = append(integrityEvents, e)
		}
	}
	require.Len(t, integrityEvents, 1)
	assert.Equal(t, true, integrityEvents[0].Metadata["integrity_failure"])

	stored, err := f.store.FindByID(ctx, res.EvidenceID)
	require.NoError(t, err)
	assert.Equal(t, res.SHA256Hash, stored.SHA256Hash, "stored hash unchanged")
}

func TestGetArtifact_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetArtifact(context.Background(), id.NewEvidenceID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, brandStatementUpload("deletable"))
	require.NoError(t, err)

	t.Run("requires a reason", func(t *testing.T) {
		err := f.svc.SoftDelete(ctx, res.EvidenceID, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("first delete succeeds and is audited", func(t *testing.T) {
		require.NoError(t, f.svc.SoftDelete(ctx, res.EvidenceID, "withdrawn by brand"))

		deleted, err := f.store.FindByIDIncludeDeleted(ctx, res.EvidenceID)
		require.NoError(t, err)
		require.NotNil(t, deleted.DeletedAt)
		assert.Equal(t, "withdrawn by brand", deleted.DeletionReason)

		events, err := f.audit.ListByEntity(ctx, "evidence", res.EvidenceID.String())
		require.NoError(t, err)
		var found bool
		for _, e := range events {
			if e.Action == audit.ActionEvidenceDeleted {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("second delete reports already deleted", func(t *testing.T) {
		err := f.svc.SoftDelete(ctx, res.EvidenceID, "again")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyDeleted))
	})
}

func TestLinkAndUnlink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.ProductID(uuid.New())

	res, err := f.svc.Upload(ctx, brandStatementUpload("linkable"))
	require.NoError(t, err)

	link := models.ProductLink{
		ProductID:  productID,
		EvidenceID: res.EvidenceID,
		AddedBy:    "reviewer@example.com",
		Notes:      "primary statement",
	}
	require.NoError(t, f.svc.Link(ctx, link))

	err = f.svc.Link(ctx, link)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	require.NoError(t, f.svc.Unlink(ctx, res.EvidenceID, productID))
	err = f.svc.Unlink(ctx, res.EvidenceID, productID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExpiryQueries(t *testing.T) {
	now := time.Now().UTC()
	store := evstore.NewInMemoryStore()
	blobs := blob.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	svc := New(store, blobs, nil, logger, WithClock(func() time.Time { return now }))

	// Seed directly: an expired screenshot and a statement expiring in 10 days.
	expired := models.Evidence{
		ID: id.NewEvidenceID(), Type: models.TypeScreenshot,
		SHA256Hash: integrity.Digest([]byte("expired")), Source: "crawler",
		StorageURI: "mem://a", ReceivedAt: now.AddDate(0, -7, 0), ExpiresAt: now.AddDate(0, -1, 0),
		Metadata: models.Screenshot{CapturedAt: now.AddDate(0, -7, 0), SourceURL: "https://example.com"},
	}
	aging := models.Evidence{
		ID: id.NewEvidenceID(), Type: models.TypeBrandStatement,
		SHA256Hash: integrity.Digest([]byte("aging")), Source: "brand-portal",
		StorageURI: "mem://b", ReceivedAt: now.AddDate(0, -11, 0), ExpiresAt: now.AddDate(0, 0, 10),
		Metadata: models.BrandStatement{StatementDate: now.AddDate(0, -11, 0), StatementText: "all"},
	}
	require.NoError(t, store.Create(context.Background(), expired))
	require.NoError(t, store.Create(context.Background(), aging))

	soon, err := svc.GetExpiringSoon(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, aging.ID, soon[0].ID)

	gone, err := svc.GetExpired(context.Background())
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, expired.ID, gone[0].ID)

	status, err := svc.CheckExpiry(context.Background(), aging.ID)
	require.NoError(t, err)
	assert.True(t, status.ExpiringSoon)
	assert.False(t, status.Expired)
}

func TestUpload_LinksWhenProductSupplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := id.ProductID(uuid.New())

	req := brandStatementUpload("with product")
	req.ProductID = &productID
	res, err := f.svc.Upload(ctx, req)
	require.NoError(t, err)

	evs, err := f.store.FindByProductID(ctx, productID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, res.EvidenceID, evs[0].ID)
}
