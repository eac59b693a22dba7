// Package publisher emits audit events to a backing store, synchronously by
// default or through a bounded async buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"idem/pkg/platform/audit"
)

// Store is the sink a publisher appends to.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	List(ctx context.Context, identityID string) ([]audit.Event, error)
}

// Publisher fills in event defaults and forwards to the store.
type Publisher struct {
	store  Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger injects a logger for dropped or failed emissions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithAsyncBuffer switches the publisher to asynchronous emission through a
// bounded channel. Events are dropped (and logged) when the buffer is full,
// never blocking the caller.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) { p.buffer = make(chan audit.Event, size) }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit publishes an audit event. Category is derived from the action when
// unset, and a zero timestamp is filled with the current time.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// List exposes the store's query surface for callers that hold the publisher.
func (p *Publisher) List(ctx context.Context, identityID string) ([]audit.Event, error) {
	return p.store.List(ctx, identityID)
}

// Close stops the async drain goroutine after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}
