// Package mocks provides in-memory test doubles for the engine's
// collaborators.
package mocks

import (
	"context"
	"sync"

	"github.com/KlikkAI/reporunner-sub008/pkg/eventbus"
	"github.com/KlikkAI/reporunner-sub008/pkg/events"
)

// EventBus records published events in order and dispatches them to handlers
// synchronously.
type EventBus struct {
	mu        sync.Mutex
	published []eventbus.Event
	handlers  map[events.EventType]eventbus.EventHandler
	nextID    int
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[events.EventType]eventbus.EventHandler),
	}
}

func (b *EventBus) Publish(ctx context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	handler := b.handlers[event.GetType()]
	b.mu.Unlock()

	if handler != nil {
		return handler(ctx, event)
	}

	return nil
}

func (b *EventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = handler

	return nil
}

func (b *EventBus) Subscribe(_ context.Context) error {
	return nil
}

func (b *EventBus) Close() error {
	return nil
}

func (b *EventBus) GenerateID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++

	return string(rune('a' + b.nextID%26))
}

// Published returns a snapshot of every published event in publish order.
func (b *EventBus) Published() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make([]eventbus.Event, len(b.published))
	copy(snapshot, b.published)

	return snapshot
}

// PublishedOfType filters published events by type.
func (b *EventBus) PublishedOfType(eventType events.EventType) []eventbus.Event {
	matched := make([]eventbus.Event, 0)

	for _, event := range b.Published() {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}
