package dispatcher

import (
	"context"

	"github.com/garyjia/tradeflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// Observer is told about every handler execution. Used for metrics.
type Observer func(evt *event.Event, handlerName string, err error)
