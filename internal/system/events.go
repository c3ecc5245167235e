package system

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/core/event"
)

// EventSystem delivers the events emitted during the previous tick to their
// subscribers. Register it before any system that subscribes.
type EventSystem struct {
	ecs.BaseSystem
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Tick(context.Context, time.Duration, *ecs.World) error {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	return nil
}
