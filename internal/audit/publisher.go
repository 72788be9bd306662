package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher records structured audit events. It is append-only and uses the
// store layer for persistence so tests can swap sinks easily. By default
// emission is synchronous; WithAsyncBuffer moves persistence onto a
// background goroutine with a bounded inbox.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}

	// mu excludes Emit's inbox send from Close's channel close.
	mu     sync.RWMutex
	closed bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// inbox capacity. When the inbox is full Emit falls back to synchronous
// persistence rather than dropping the event.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithLogger attaches a logger for background persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

// Log satisfies the Logger interface.
func (p *Publisher) Log(ctx context.Context, event Event) error {
	return p.Emit(ctx, event)
}

// Emit records an event, stamping time and category when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = CategoryOf(event.Action)
	}

	if p.inbox != nil {
		p.mu.RLock()
		if !p.closed {
			select {
			case p.inbox <- event:
				p.mu.RUnlock()
				return nil
			default:
				// Inbox full: persist inline so no event is lost.
			}
		}
		p.mu.RUnlock()
	}
	return p.store.Append(ctx, event)
}

// List returns the recorded trail for one entity.
func (p *Publisher) List(ctx context.Context, entityType, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityType, entityID)
}

// Close stops the background drain, flushing buffered events first.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
	}
}
