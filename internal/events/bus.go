package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/scenery/internal/logger"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Handler reacts to one fired event. A returned error aborts the fire.
type Handler func(ctx context.Context, event Event) error

// Subscriber attaches its handlers to a bus.
type Subscriber interface {
	Subscribe(bus *Bus)
}

// Bus delivers events to handlers sequentially, in registration order. Fire
// blocks until every handler has returned, and the first handler error is
// returned to the caller without invoking the remaining handlers.
//
// Handlers attached while a named subscriber subscribes carry its name, and
// their errors come back as *errors.PluginError.
type Bus struct {
	logger      *logger.Logger
	subs        map[Kind][]handlerEntry
	subscribers map[Subscriber]struct{}
	owner       string
	mu          sync.RWMutex
}

// NewBus creates an empty bus. A nil logger disables fire tracing.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		logger:      log.WithComponent("bus"),
		subs:        make(map[Kind][]handlerEntry),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Register lets subscriber attach its handlers. A subscriber registered
// twice keeps its first registration. Subscribers must be comparable,
// usually pointers.
func (b *Bus) Register(subscriber Subscriber) {
	b.RegisterAs("", subscriber)
}

// RegisterAs is Register with the handlers attributed to owner. Registration
// happens from one goroutine, before events fire.
func (b *Bus) RegisterAs(owner string, subscriber Subscriber) {
	if b == nil || subscriber == nil {
		return
	}
	b.mu.Lock()
	if _, exists := b.subscribers[subscriber]; exists {
		b.mu.Unlock()
		return
	}
	b.subscribers[subscriber] = struct{}{}
	previous := b.owner
	b.owner = owner
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.owner = previous
		b.mu.Unlock()
	}()
	subscriber.Subscribe(b)
}

// Listen registers handler for kind and returns the bus for chaining.
func (b *Bus) Listen(kind Kind, handler Handler) *Bus {
	if b == nil || handler == nil {
		return b
	}
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], handlerEntry{owner: b.owner, handler: handler})
	b.mu.Unlock()
	return b
}

// Fire delivers event to every handler registered for its exact kind.
func (b *Bus) Fire(ctx context.Context, event Event) error {
	if b == nil || event == nil {
		return nil
	}

	b.mu.RLock()
	handlers := append([]handlerEntry(nil), b.subs[event.Kind()]...)
	b.mu.RUnlock()

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"event":    string(event.Kind()),
		"handlers": len(handlers),
	}).Debug("fire")

	for _, entry := range handlers {
		if err := entry.handler(ctx, event); err != nil {
			err = fmt.Errorf("%s handler: %w", event.Kind(), err)
			if entry.owner != "" {
				return sceneryerrors.NewPluginError(entry.owner, err)
			}
			return err
		}
	}
	return nil
}

// Listen registers a handler typed on the concrete event. Events of the
// matching kind but a different Go type are ignored.
func Listen[E Event](b *Bus, handler func(ctx context.Context, event E) error) *Bus {
	var zero E
	return b.Listen(zero.Kind(), func(ctx context.Context, event Event) error {
		typed, ok := event.(E)
		if !ok {
			return nil
		}
		return handler(ctx, typed)
	})
}

type handlerEntry struct {
	owner   string
	handler Handler
}
