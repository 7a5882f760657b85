// Package events carries job lifecycle notifications to in-process
// listeners, e.g. the CLI's live progress output.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// Bus fans lifecycle events out to subscribers. Publishing is strictly
// fire-and-forget: a slow or absent subscriber never blocks a job, events
// are dropped when a subscriber's buffer is full.
type Bus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.Mutex
	subscribers []chan schemas.Event
	isShutdown  bool
}

var _ schemas.EventPublisher = (*Bus)(nil)

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		logger:     logger.Named("events"),
		bufferSize: bufferSize,
	}
}

// Publish delivers an event to every subscriber without blocking. Missing
// fields are defaulted first so listeners always see a timestamped, leveled
// event.
func (b *Bus) Publish(event schemas.Event) {
	event = event.WithDefaults()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debug("Dropping event for slow subscriber",
				zap.String("message", event.Message),
				zap.String("trace_id", event.TraceID))
		}
	}
}

// Subscribe registers a listener and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe or Shutdown.
func (b *Bus) Subscribe() (<-chan schemas.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan schemas.Event, b.bufferSize)
	if b.isShutdown {
		close(ch)
		return ch, func() {}
	}
	b.subscribers = append(b.subscribers, ch)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.isShutdown {
			return
		}
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Shutdown closes all subscriber channels. Publishes after shutdown are
// silently discarded.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		return
	}
	b.isShutdown = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
