// Package models defines the evidence record, its type-discriminated
// metadata, and the product link join row.
package models

import (
	"time"

	id "pfascert/pkg/domain"
)

// Type discriminates evidence records and their metadata schema.
type Type string

const (
	TypeLabReport      Type = "lab_report"
	TypeBrandStatement Type = "brand_statement"
	TypePolicyDocument Type = "policy_document"
	TypeScreenshot     Type = "screenshot"
	TypeCorrespondence Type = "correspondence"
)

// expiryMonths is how long each evidence type stays valid, and doubles as the
// WORM retention window for the stored artifact.
var expiryMonths = map[Type]int{
	TypeLabReport:      24,
	TypeBrandStatement: 12,
	TypePolicyDocument: 12,
	TypeScreenshot:     6,
	TypeCorrespondence: 12,
}

// Valid reports whether t is a known evidence type.
func (t Type) Valid() bool {
	_, ok := expiryMonths[t]
	return ok
}

// ExpiryMonths returns the validity window for the type. Zero for unknown
// types.
func (t Type) ExpiryMonths() int {
	return expiryMonths[t]
}

// Upload constraints enforced before any storage write.
const (
	MaxFileSizeBytes = 10 << 20 // 10 MiB

	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// AllowedMIME reports whether the content type may be uploaded.
func AllowedMIME(mimeType string) bool {
	switch mimeType {
	case MIMEPDF, MIMEPNG, MIMEJPEG:
		return true
	}
	return false
}

// Evidence is the immutable evidentiary record. StorageURI and SHA256Hash
// never change after creation; the only permitted mutation is a soft delete.
type Evidence struct {
	ID               id.EvidenceID
	Type             Type
	Source           string
	StorageURI       string
	SHA256Hash       string
	FileSizeBytes    int64
	MIMEType         string
	OriginalFilename string
	ReceivedAt       time.Time
	ExpiresAt        time.Time
	Metadata         Metadata
	Status           string

	DeletedAt      *time.Time
	DeletionReason string
}

// Deleted reports whether the record was soft-deleted.
func (e Evidence) Deleted() bool { return e.DeletedAt != nil }

// Expired reports whether the record's validity window has passed at now.
func (e Evidence) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

// StatusPendingReview is the status of every fresh upload.
const StatusPendingReview = "pending_review"

// ProductLink joins evidence to a product, optionally scoped to one
// component. Links are hard-deletable independently of the evidence row.
type ProductLink struct {
	ProductID   id.ProductID
	EvidenceID  id.EvidenceID
	ComponentID *id.ComponentID
	AddedAt     time.Time
	AddedBy     string
	Notes       string
}
