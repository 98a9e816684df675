// Package timing drives a continuous-time discrete-event simulation that can
// be advanced to arbitrary target times.
package timing

import "github.com/sarchlab/clinicsim/hooking"

// VTimeInHour is a point in simulated time, measured in hours.
type VTimeInHour float64

// Handler processes events of various types.
// Events are plain data structs (no interface required).
// Handlers use type switching to handle different event types:
//
//	func (h *MyHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *MyEvent:
//	        // handle MyEvent
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation time.
type TimeTeller interface {
	CurrentTime() VTimeInHour
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the data payload to be delivered to the handler.
	Event any

	// Time is when the event should be processed.
	Time VTimeInHour

	// Handler is the component that will process this event.
	Handler Handler
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event. The hook item is the *ScheduledEvent.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
