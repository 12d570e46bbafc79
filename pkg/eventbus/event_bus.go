// Package eventbus abstracts the transport run lifecycle events are published
// on. The engine holds the sink by reference, so tests can inject an
// in-process bus.
package eventbus

import (
	"context"

	"github.com/KlikkAI/reporunner-sub008/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
