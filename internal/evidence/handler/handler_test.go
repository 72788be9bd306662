package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfascert/internal/audit"
	"pfascert/internal/blob"
	"pfascert/internal/evidence/handler"
	"pfascert/internal/evidence/models"
	"pfascert/internal/evidence/service"
	evstore "pfascert/internal/evidence/store"
	"pfascert/pkg/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	router *chi.Mux
	store  *evstore.InMemoryStore
	blobs  *blob.InMemoryStore
	audits *audit.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := evstore.NewInMemoryStore()
	blobs := blob.NewInMemoryStore()
	audits := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(audits)
	logger := slog.New(slog.DiscardHandler)
	svc := service.New(store, blobs, auditor, logger,
		service.WithClock(func() time.Time { return testNow }))

	router := chi.NewRouter()
	handler.New(svc, logger).Register(router)
	return &fixture{router: router, store: store, blobs: blobs, audits: audits}
}

func statementMetadata(t *testing.T) string {
	t.Helper()
	meta, err := json.Marshal(models.BrandStatement{
		StatementDate: testNow.AddDate(0, -1, 0),
		StatementText: "Covers all components.",
		SignedBy:      "QA Director",
	})
	require.NoError(t, err)
	return string(meta)
}

func multipartUpload(t *testing.T, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "statement.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/evidence", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func defaultFields(t *testing.T) map[string]string {
	return map[string]string{
		"type":        string(models.TypeBrandStatement),
		"source":      "meridian-compliance",
		"mime_type":   models.MIMEPDF,
		"metadata":    statementMetadata(t),
		"uploaded_by": "analyst@pfascert.dev",
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndFetchArtifact(t *testing.T) {
	f := newFixture(t)
	content := []byte("%PDF-1.7 statement body")

	rec := f.do(multipartUpload(t, content, defaultFields(t)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending_review", resp.Status)
	assert.NotEmpty(t, resp.SHA256Hash)

	art := f.do(httptest.NewRequest(http.MethodGet, "/evidence/"+resp.EvidenceID+"/artifact", nil))
	require.Equal(t, http.StatusOK, art.Code)
	assert.Equal(t, models.MIMEPDF, art.Header().Get("Content-Type"))
	assert.Equal(t, resp.SHA256Hash, art.Header().Get("X-Content-SHA256"))
	got, err := io.ReadAll(art.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	f := newFixture(t)
	content := bytes.Repeat([]byte("x"), 12<<20)

	rec := f.do(multipartUpload(t, content, defaultFields(t)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadRejectsDisallowedMIME(t *testing.T) {
	f := newFixture(t)
	fields := defaultFields(t)
	fields["mime_type"] = "text/plain"

	rec := f.do(multipartUpload(t, []byte("plain text"), fields))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "invalid_input", errBody["error"])
}

func TestUploadDuplicateContentConflicts(t *testing.T) {
	f := newFixture(t)
	content := []byte("%PDF-1.7 duplicate body")

	first := f.do(multipartUpload(t, content, defaultFields(t)))
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(multipartUpload(t, content, defaultFields(t)))
	assert.Equal(t, http.StatusConflict, second.Code)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &errBody))
	assert.Equal(t, "duplicate_evidence", errBody["error"])
}

func TestArtifactIntegrityFailureIsNotServed(t *testing.T) {
	f := newFixture(t)
	content := []byte("%PDF-1.7 will be corrupted")
	rec := f.do(multipartUpload(t, content, defaultFields(t)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	f.blobs.Corrupt[resp.ArtifactURL] = true

	art := f.do(httptest.NewRequest(http.MethodGet, "/evidence/"+resp.EvidenceID+"/artifact", nil))

	assert.Equal(t, http.StatusBadGateway, art.Code)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(art.Body.Bytes(), &errBody))
	assert.Equal(t, "integrity_failure", errBody["error"])
}

func TestGetUnknownEvidence(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/evidence/6b9f1f63-3a49-4e54-9df1-0e3f0e6a9c11", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEvidenceRejectsMalformedID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/evidence/not-a-uuid", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteLifecycle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, []byte("%PDF-1.7 short lived"), defaultFields(t)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	body := func() io.Reader {
		return bytes.NewBufferString(`{"reason":"superseded by newer statement"}`)
	}
	del := httptest.NewRequest(http.MethodDelete, "/evidence/"+resp.EvidenceID, body())
	require.Equal(t, http.StatusNoContent, f.do(del).Code)

	get := f.do(httptest.NewRequest(http.MethodGet, "/evidence/"+resp.EvidenceID, nil))
	assert.Equal(t, http.StatusNotFound, get.Code)

	again := httptest.NewRequest(http.MethodDelete, "/evidence/"+resp.EvidenceID, body())
	assert.Equal(t, http.StatusConflict, f.do(again).Code)
}

func TestDeleteRequiresReason(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, []byte("%PDF-1.7 keeper"), defaultFields(t)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	del := httptest.NewRequest(http.MethodDelete, "/evidence/"+resp.EvidenceID,
		bytes.NewBufferString(`{}`))

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(del).Code)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		fields := defaultFields(t)
		rec := f.do(multipartUpload(t, []byte(fmt.Sprintf("%%PDF-1.7 statement %d", i)), fields))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/evidence?type=brand_statement&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []handler.EvidenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestUploadRecordsActorInAuditTrail(t *testing.T) {
	f := newFixture(t)
	req := testutil.WithActor(multipartUpload(t, []byte("%PDF-1.7 signed"), defaultFields(t)), "auditor@pfascert.dev")

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	events, err := f.audits.ListByEntity(req.Context(), "evidence", resp.EvidenceID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, audit.ActionEvidenceUploaded, events[0].Action)
	assert.Equal(t, "auditor@pfascert.dev", events[0].Actor)
}

func TestDeleteRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartUpload(t, []byte("%PDF-1.7 keeper"), defaultFields(t)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp handler.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	del := httptest.NewRequest(http.MethodDelete, "/evidence/"+resp.EvidenceID,
		bytes.NewBufferString(`{"reason":`))

	got := f.do(del)
	assert.Equal(t, http.StatusBadRequest, got.Code)
	assert.Contains(t, got.Body.String(), "bad_request")
}
