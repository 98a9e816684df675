package timing

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/clinicsim/hooking"
)

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewEventLogger returns an EventLogger that writes to logger at Debug level.
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger, level: logrus.DebugLevel}
}

// WithLevel changes the level the events are logged at.
func (h *EventLogger) WithLevel(level logrus.Level) *EventLogger {
	h.level = level
	return h
}

// Func logs the event information.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	h.logger.WithFields(logrus.Fields{
		"time":  float64(evt.Time),
		"event": fmt.Sprintf("%T", evt.Event),
	}).Log(h.level, "event")
}
