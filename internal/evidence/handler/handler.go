package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pfascert/internal/evidence/models"
	"pfascert/internal/evidence/service"
	evstore "pfascert/internal/evidence/store"
	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
	"pfascert/pkg/platform/httputil"
	"pfascert/pkg/requestcontext"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing; larger
// file parts spill to disk before the size limit check rejects them.
const maxMultipartMemory = 4 << 20

// Service defines the evidence operations the handler exposes.
type Service interface {
	Upload(ctx context.Context, req service.UploadRequest) (service.UploadResult, error)
	Get(ctx context.Context, evidenceID id.EvidenceID) (models.Evidence, error)
	GetArtifact(ctx context.Context, evidenceID id.EvidenceID) (service.Artifact, error)
	SoftDelete(ctx context.Context, evidenceID id.EvidenceID, reason string) error
	Link(ctx context.Context, link models.ProductLink) error
	Unlink(ctx context.Context, evidenceID id.EvidenceID, productID id.ProductID) error
	CheckExpiry(ctx context.Context, evidenceID id.EvidenceID) (service.ExpiryStatus, error)
	GetExpiringSoon(ctx context.Context, days int) ([]models.Evidence, error)
	List(ctx context.Context, filter evstore.Filter, page evstore.Page) ([]models.Evidence, error)
}

// Handler wires evidence endpoints to the evidence service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts evidence endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evidence", h.HandleUpload)
	r.Get("/evidence", h.HandleList)
	r.Get("/evidence/expiring", h.HandleExpiring)
	r.Get("/evidence/{evidenceID}", h.HandleGet)
	r.Get("/evidence/{evidenceID}/artifact", h.HandleGetArtifact)
	r.Get("/evidence/{evidenceID}/expiry", h.HandleExpiry)
	r.Delete("/evidence/{evidenceID}", h.HandleDelete)
	r.Post("/evidence/{evidenceID}/links", h.HandleLink)
	r.Delete("/evidence/{evidenceID}/links/{productID}", h.HandleUnlink)
}

// HandleUpload handles POST /evidence multipart requests. Form fields: file,
// type, source, metadata (JSON), uploaded_by, and optional product_id.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be multipart/form-data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file part is required"))
		return
	}
	defer file.Close()

	content, err := readFilePart(file, header)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req := service.UploadRequest{
		Content:    content,
		Filename:   header.Filename,
		MIMEType:   partMIMEType(r, header),
		Type:       models.Type(r.FormValue("type")),
		Source:     r.FormValue("source"),
		Metadata:   json.RawMessage(r.FormValue("metadata")),
		UploadedBy: r.FormValue("uploaded_by"),
	}
	if raw := r.FormValue("product_id"); raw != "" {
		productID, err := id.ParseProductID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req.ProductID = &productID
	}

	result, err := h.service.Upload(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "evidence upload failed",
			"request_id", requestID,
			"type", req.Type,
			"filename", req.Filename,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evidence uploaded",
		"request_id", requestID,
		"evidence_id", result.EvidenceID,
		"type", req.Type,
		"size_bytes", len(content),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromUploadResult(result))
}

// HandleGet handles GET /evidence/{evidenceID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.Get(r.Context(), evidenceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvidence(ev))
}

// HandleGetArtifact handles GET /evidence/{evidenceID}/artifact requests.
// Bytes are fully verified against the stored digest before the first byte
// is written; corruption surfaces as an error response, never a partial body.
func (h *Handler) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	artifact, err := h.service.GetArtifact(ctx, evidenceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Bytes)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("X-Content-SHA256", artifact.Hash)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Bytes); err != nil {
		h.logger.WarnContext(ctx, "artifact write aborted",
			"request_id", requestcontext.RequestID(ctx),
			"evidence_id", evidenceID,
			"error", err,
		)
	}
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

// HandleDelete handles DELETE /evidence/{evidenceID} requests. Deletion is a
// soft tombstone; the stored artifact stays under its retention lock.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[deleteRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SoftDelete(r.Context(), evidenceID, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linkRequest struct {
	ProductID   string `json:"product_id"`
	ComponentID string `json:"component_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
	AddedBy     string `json:"added_by"`
}

// HandleLink handles POST /evidence/{evidenceID}/links requests.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[linkRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	productID, err := id.ParseProductID(req.ProductID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	link := models.ProductLink{
		ProductID:  productID,
		EvidenceID: evidenceID,
		AddedBy:    req.AddedBy,
		Notes:      req.Notes,
	}
	if req.ComponentID != "" {
		componentID, err := id.ParseComponentID(req.ComponentID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		link.ComponentID = &componentID
	}

	if err := h.service.Link(r.Context(), link); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnlink handles DELETE /evidence/{evidenceID}/links/{productID} requests.
func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Unlink(r.Context(), evidenceID, productID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExpiry handles GET /evidence/{evidenceID}/expiry requests.
func (h *Handler) HandleExpiry(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.CheckExpiry(r.Context(), evidenceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromExpiryStatus(status))
}

// HandleExpiring handles GET /evidence/expiring requests.
func (h *Handler) HandleExpiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "days must be a positive integer"))
			return
		}
		days = parsed
	}
	evs, err := h.service.GetExpiringSoon(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvidenceList(evs))
}

// HandleList handles GET /evidence requests with optional filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := evstore.Filter{
		Type:           models.Type(q.Get("type")),
		Source:         q.Get("source"),
		IncludeExpired: q.Get("include_expired") == "true",
	}
	if raw := q.Get("expiring_within_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "expiring_within_days must be a positive integer"))
			return
		}
		filter.ExpiringWithinDays = days
	}
	page := evstore.Page{}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		page.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative"))
			return
		}
		page.Offset = offset
	}

	evs, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvidenceList(evs))
}

// readFilePart reads the uploaded part, rejecting oversize content before it
// is buffered whole.
func readFilePart(file multipart.File, header *multipart.FileHeader) ([]byte, error) {
	if header.Size > models.MaxFileSizeBytes {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"file exceeds the %d byte limit", models.MaxFileSizeBytes)
	}
	content, err := io.ReadAll(io.LimitReader(file, models.MaxFileSizeBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "reading uploaded file", err)
	}
	if int64(len(content)) > models.MaxFileSizeBytes {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"file exceeds the %d byte limit", models.MaxFileSizeBytes)
	}
	return content, nil
}

// partMIMEType prefers the explicit form field over the part's own header so
// callers can correct a client library's default.
func partMIMEType(r *http.Request, header *multipart.FileHeader) string {
	if v := r.FormValue("mime_type"); v != "" {
		return v
	}
	return header.Header.Get("Content-Type")
}
