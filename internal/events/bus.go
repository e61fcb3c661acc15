package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a business event crossing into the notification pipeline.
type Event struct {
	Type    string
	Payload map[string]any
}

// Handler consumes one event. Handlers are fire-and-forget: they run on
// their own goroutine after the originating operation has completed, and a
// panic is caught and logged instead of crashing the process.
type Handler func(ctx context.Context, e Event)

// Bus is a typed in-process publish/subscribe fan-out. It is injected into
// publishers and the bridge rather than shared as a global.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger
}

func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{handlers: make(map[string][]Handler), logger: logger}
}

func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

// Publish dispatches the event asynchronously to every subscriber. It never
// blocks the caller and never surfaces handler failures.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()
	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Errorw("event handler panicked", "event", e.Type, "panic", r)
				}
			}()
			h(context.Background(), e)
		}()
	}
}

// Wait blocks until all in-flight handlers return. Used in tests and
// shutdown.
func (b *Bus) Wait() {
	b.wg.Wait()
}
