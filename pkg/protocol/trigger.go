package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback submits a run for the workflow the trigger is bound to.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger is an external event source that fires workflow runs.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates trigger instances from config bags.
type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
