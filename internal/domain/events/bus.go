package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sinkQueueSize = 256

// Bus fans events out to channel subscribers and forwards them to sinks on a
// background worker. Publish never blocks: a full subscriber misses events.
type Bus struct {
	logger *zap.Logger
	sinks  []Sink
	queue  chan Event
	done   chan struct{}

	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

// NewBus creates a bus and starts its sink worker.
func NewBus(logger *zap.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan Event, sinkQueueSize),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	go b.drain()
	return b
}

// Subscribe returns a channel of future events and a cancel func.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	key := b.next
	b.next++
	b.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[key]; ok {
				delete(b.subs, key)
				close(ch)
			}
		})
	}
}

// Publish delivers e to subscribers and queues it for the sinks.
func (b *Bus) Publish(e Event) {
	if e.ID == "" || e.At.IsZero() {
		fresh := New(e.Type)
		if e.ID == "" {
			e.ID = fresh.ID
		}
		if e.At.IsZero() {
			e.At = fresh.At
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("Dropping event for slow subscriber", zap.String("type", string(e.Type)))
		}
	}
	if len(b.sinks) == 0 {
		return
	}
	select {
	case b.queue <- e:
	default:
		b.logger.Warn("Event sink queue full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("instance_id", e.InstanceID))
	}
}

func (b *Bus) drain() {
	defer close(b.done)
	for e := range b.queue {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := sink.Record(ctx, e); err != nil {
				b.logger.Warn("Failed to record event", zap.String("type", string(e.Type)), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close flushes queued events to the sinks and closes all subscriptions.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for key, ch := range b.subs {
		delete(b.subs, key)
		close(ch)
	}
	close(b.queue)
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
