// Package domain defines typed identifiers shared across modules. Each ID is
// a distinct uuid.UUID newtype so the compiler rejects cross-type assignment;
// parsing enforces "valid, non-empty, non-nil" at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "pfascert/pkg/domain-errors"
)

type (
	// EvidenceID identifies an evidence record.
	EvidenceID uuid.UUID
	// ProductID identifies a product.
	ProductID uuid.UUID
	// ComponentID identifies a product component.
	ComponentID uuid.UUID
)

func (id EvidenceID) String() string  { return uuid.UUID(id).String() }
func (id ProductID) String() string   { return uuid.UUID(id).String() }
func (id ComponentID) String() string { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and logs.
func (id EvidenceID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ProductID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ComponentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EvidenceID) UnmarshalText(text []byte) error {
	parsed, err := ParseEvidenceID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProductID) UnmarshalText(text []byte) error {
	parsed, err := ParseProductID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ComponentID) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IsZero reports whether the ID is the nil UUID.
func (id EvidenceID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ComponentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewEvidenceID returns a fresh random evidence ID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "id must be a valid UUID", err)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseEvidenceID parses and validates an evidence ID.
func ParseEvidenceID(raw string) (EvidenceID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return EvidenceID{}, err
	}
	return EvidenceID(parsed), nil
}

// ParseProductID parses and validates a product ID.
func ParseProductID(raw string) (ProductID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return ProductID{}, err
	}
	return ProductID(parsed), nil
}

// ParseComponentID parses and validates a component ID.
func ParseComponentID(raw string) (ComponentID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return ComponentID{}, err
	}
	return ComponentID(parsed), nil
}
