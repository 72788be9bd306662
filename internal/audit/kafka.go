package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// OutboxSource is the slice of PostgresStore the worker needs.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// KafkaPublisher drains the audit outbox to a Kafka topic. Rows are marked
// published only after the broker acknowledges the batch, so a crash between
// produce and mark yields at-least-once delivery, never loss.
type KafkaPublisher struct {
	client   *kgo.Client
	source   OutboxSource
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewKafkaPublisher connects a producer for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, source OutboxSource, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{
		client:   client,
		source:   source,
		topic:    topic,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}, nil
}

// Run polls the outbox until ctx is cancelled.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.publishPending(ctx); err != nil {
				p.logger.Error("audit outbox publish failed", "error", err)
			}
		}
	}
}

func (p *KafkaPublisher) publishPending(ctx context.Context) error {
	rows, err := p.source.FetchUnpublished(ctx, p.batch)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(rows))
	for i, row := range rows {
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(row.ID.String()),
			Value: row.Payload,
		}
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := p.source.MarkPublished(ctx, ids); err != nil {
		// Rows stay unpublished and will be re-produced; consumers
		// dedupe on the event ID key.
		return err
	}

	p.logger.Debug("audit outbox drained", "count", len(rows))
	return nil
}
