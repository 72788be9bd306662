// Package blob defines the write-once object storage contract the evidence
// pipeline depends on, plus an in-memory implementation for tests and local
// development. Production deployments adapt an object store with native
// object-lock support behind the same interface.
package blob

import (
	"context"
	"io"
	"time"
)

// LockMode selects the retention enforcement level for a stored object.
type LockMode string

const (
	// LockGovernance allows privileged override of the retention window.
	LockGovernance LockMode = "GOVERNANCE"
	// LockCompliance forbids deletion by anyone until retention expires.
	LockCompliance LockMode = "COMPLIANCE"
)

// PutResult identifies a stored object.
type PutResult struct {
	URI  string
	ETag string
}

// ObjectInfo describes a stored object without its payload.
type ObjectInfo struct {
	ContentType  string
	Length       int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
	LockMode     LockMode
	LockUntil    time.Time
}

// Store is the WORM storage collaborator. Put must refuse to overwrite an
// existing key; Get returns the full object stream; Head returns metadata
// including the active lock.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string, lockMode LockMode, retainUntil time.Time) (PutResult, error)
	Get(ctx context.Context, uri string) (io.ReadCloser, error)
	Head(ctx context.Context, uri string) (ObjectInfo, error)
}
