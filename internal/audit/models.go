// Package audit captures a record of every mutating operation and every
// integrity failure in the evidence pipeline. Events are transport-agnostic;
// stores and sinks fan out behind the Logger interface.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. It drives
// retention policy and downstream routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// evidence lifecycle, certification decisions. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to forensics, above all
	// integrity failures on artifact reads.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine visibility events that can be
	// sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Action names a recorded operation.
type Action string

const (
	ActionEvidenceUploaded   Action = "evidence_uploaded"
	ActionEvidenceDeleted    Action = "evidence_soft_deleted"
	ActionEvidenceLinked     Action = "evidence_linked"
	ActionEvidenceUnlinked   Action = "evidence_unlinked"
	ActionIntegrityFailure   Action = "evidence_integrity_failure"
	ActionDecisionEvaluated  Action = "decision_evaluated"
	ActionDecisionValidated  Action = "decision_validated"
)

// actionCategories maps each action to its category. Unlisted actions fall
// back to operations.
var actionCategories = map[Action]EventCategory{
	ActionEvidenceUploaded:  CategoryCompliance,
	ActionEvidenceDeleted:   CategoryCompliance,
	ActionEvidenceLinked:    CategoryCompliance,
	ActionEvidenceUnlinked:  CategoryCompliance,
	ActionIntegrityFailure:  CategorySecurity,
	ActionDecisionEvaluated: CategoryCompliance,
	ActionDecisionValidated: CategoryOperations,
}

// CategoryOf returns the retention category for an action.
func CategoryOf(action Action) EventCategory {
	if c, ok := actionCategories[action]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Actor      string
	Action     Action
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
	IPAddress  string
	Metadata   map[string]any
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

// Logger is what services depend on. The publisher is the default
// implementation; tests may record events directly.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Store persists audit events append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
}
