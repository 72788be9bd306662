package handler

import (
	"time"

	"pfascert/internal/evidence/models"
	"pfascert/internal/evidence/service"
)

// UploadResponse is the wire form of a successful upload.
type UploadResponse struct {
	EvidenceID  string    `json:"evidence_id"`
	ArtifactURL string    `json:"artifact_url"`
	SHA256Hash  string    `json:"sha256_hash"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromUploadResult(result service.UploadResult) UploadResponse {
	return UploadResponse{
		EvidenceID:  result.EvidenceID.String(),
		ArtifactURL: result.ArtifactURL,
		SHA256Hash:  result.SHA256Hash,
		Status:      result.Status,
		CreatedAt:   result.CreatedAt,
	}
}

// EvidenceResponse is the wire form of an evidence record. Raw storage
// details stay internal; callers fetch bytes through the artifact endpoint.
type EvidenceResponse struct {
	EvidenceID       string     `json:"evidence_id"`
	Type             string     `json:"type"`
	Source           string     `json:"source"`
	SHA256Hash       string     `json:"sha256_hash"`
	FileSizeBytes    int64      `json:"file_size_bytes"`
	MIMEType         string     `json:"mime_type"`
	OriginalFilename string     `json:"original_filename"`
	ReceivedAt       time.Time  `json:"received_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Status           string     `json:"status"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	DeletionReason   string     `json:"deletion_reason,omitempty"`
}

func FromEvidence(ev models.Evidence) EvidenceResponse {
	return EvidenceResponse{
		EvidenceID:       ev.ID.String(),
		Type:             string(ev.Type),
		Source:           ev.Source,
		SHA256Hash:       ev.SHA256Hash,
		FileSizeBytes:    ev.FileSizeBytes,
		MIMEType:         ev.MIMEType,
		OriginalFilename: ev.OriginalFilename,
		ReceivedAt:       ev.ReceivedAt,
		ExpiresAt:        ev.ExpiresAt,
		Status:           ev.Status,
		DeletedAt:        ev.DeletedAt,
		DeletionReason:   ev.DeletionReason,
	}
}

func FromEvidenceList(evs []models.Evidence) []EvidenceResponse {
	out := make([]EvidenceResponse, len(evs))
	for i, ev := range evs {
		out[i] = FromEvidence(ev)
	}
	return out
}

// ExpiryResponse is the wire form of an expiry status check.
type ExpiryResponse struct {
	EvidenceID   string    `json:"evidence_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	Expired      bool      `json:"expired"`
	ExpiringSoon bool      `json:"expiring_soon"`
}

func FromExpiryStatus(status service.ExpiryStatus) ExpiryResponse {
	return ExpiryResponse{
		EvidenceID:   status.EvidenceID.String(),
		ExpiresAt:    status.ExpiresAt,
		Expired:      status.Expired,
		ExpiringSoon: status.ExpiringSoon,
	}
}
