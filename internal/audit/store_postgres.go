package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker; Kafka is the source of truth for downstream consumers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL audit store that writes to the outbox.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID         string         `json:"ID"`
	Category   string         `json:"Category"`
	Timestamp  string         `json:"Timestamp"`
	Actor      string         `json:"Actor,omitempty"`
	Action     string         `json:"Action"`
	EntityType string         `json:"EntityType"`
	EntityID   string         `json:"EntityID"`
	OldValues  map[string]any `json:"OldValues,omitempty"`
	NewValues  map[string]any `json:"NewValues,omitempty"`
	IPAddress  string         `json:"IPAddress,omitempty"`
	Metadata   map[string]any `json:"Metadata,omitempty"`
	RequestID  string         `json:"RequestID,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	eventID := uuid.New()
	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(event.Category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:      event.Actor,
		Action:     string(event.Action),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		OldValues:  event.OldValues,
		NewValues:  event.NewValues,
		IPAddress:  event.IPAddress,
		Metadata:   event.Metadata,
		RequestID:  event.RequestID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const q = `
		INSERT INTO audit_outbox (id, category, action, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, q,
		eventID, string(event.Category), string(event.Action),
		event.EntityType, event.EntityID, body, event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error) {
	const q = `
		SELECT payload FROM audit_outbox
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var payload outboxPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, payload.Timestamp)
		events = append(events, Event{
			Category:   EventCategory(payload.Category),
			Timestamp:  ts,
			Actor:      payload.Actor,
			Action:     Action(payload.Action),
			EntityType: payload.EntityType,
			EntityID:   payload.EntityID,
			OldValues:  payload.OldValues,
			NewValues:  payload.NewValues,
			IPAddress:  payload.IPAddress,
			Metadata:   payload.Metadata,
			RequestID:  payload.RequestID,
		})
	}
	return events, rows.Err()
}

// FetchUnpublished returns up to limit outbox rows not yet sent to Kafka.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	const q = `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished audit events: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished stamps outbox rows after a successful Kafka produce.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, q, pq.Array(idsToStrings(ids))); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func idsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// OutboxRow is one pending outbox entry.
type OutboxRow struct {
	ID      uuid.UUID
	Payload []byte
}
