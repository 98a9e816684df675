package timing

import (
	"fmt"
	"math"
	"reflect"

	"github.com/sarchlab/clinicsim/hooking"
)

// SerialEngine processes scheduled events one after another in time order.
//
// Unlike an engine that runs until the event queue drains, a SerialEngine is
// advanced by its owner to explicit target times with RunUntil. Between calls
// the clock is parked at the last target and pending events wait in the
// queue.
//
// A SerialEngine is not safe for concurrent use, and RunUntil must not be
// called from inside a handler.
type SerialEngine struct {
	*hooking.HookableBase

	now   VTimeInHour
	queue *eventQueue

	running bool
}

// NewSerialEngine creates a SerialEngine with its clock at zero.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        newEventQueue(),
	}
}

// Schedule registers an event to be handled in the future. Scheduling an
// event in the past, at a non-finite time, or without a handler is a
// programming error and panics.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	t := float64(evt.Time)
	if math.IsNaN(t) || math.IsInf(t, 0) {
		panic(fmt.Sprintf(
			"timing: cannot schedule event %s at non-finite time %v",
			reflect.TypeOf(evt.Event), evt.Time,
		))
	}

	if evt.Time < e.now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt.Event), evt.Time, e.now,
		))
	}

	if evt.Handler == nil {
		panic(fmt.Sprintf(
			"timing: event %s has no handler", reflect.TypeOf(evt.Event)))
	}

	e.queue.Push(evt)
}

// RunUntil fires, in time order, every pending event whose time is not later
// than target, including events scheduled by the handlers themselves. The
// clock then parks at exactly target, whether or not an event fired there.
//
// A target earlier than the current time does nothing; the clock never runs
// backwards. If a handler fails, RunUntil stops with the clock at that
// event's time and returns the error.
func (e *SerialEngine) RunUntil(target VTimeInHour) error {
	if e.running {
		panic("timing: RunUntil is not reentrant")
	}

	if math.IsNaN(float64(target)) || target < e.now {
		return nil
	}

	e.running = true
	defer func() { e.running = false }()

	for {
		next := e.queue.Peek()
		if next == nil || next.Time > target {
			break
		}

		evt := e.queue.Pop()
		e.now = evt.Time

		hookCtx := hooking.HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   &evt.ScheduledEvent,
		}
		e.InvokeHook(hookCtx)

		err := evt.Handler.Handle(evt.Event)
		if err != nil {
			return fmt.Errorf("timing: handling %s @ %.10f: %w",
				reflect.TypeOf(evt.Event), evt.Time, err)
		}

		hookCtx.Pos = HookPosAfterEvent
		e.InvokeHook(hookCtx)
	}

	// An infinite target drains the queue but leaves the clock at the last
	// event.
	if !math.IsInf(float64(target), 1) {
		e.now = target
	}

	return nil
}

// CurrentTime returns the time of the event being handled, or the time the
// engine is parked at between runs.
func (e *SerialEngine) CurrentTime() VTimeInHour {
	return e.now
}

// NextEventTime returns the time of the earliest pending event.
func (e *SerialEngine) NextEventTime() (VTimeInHour, bool) {
	next := e.queue.Peek()
	if next == nil {
		return 0, false
	}

	return next.Time, true
}

// Pending returns the number of events waiting to fire.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Reset drops every pending event and moves the clock back to zero. It is
// the only way the clock ever moves backwards.
func (e *SerialEngine) Reset() {
	if e.running {
		panic("timing: cannot reset while running")
	}

	e.queue.Clear()
	e.now = 0
}
