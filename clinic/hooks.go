package clinic

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/clinicsim/hooking"
)

// HookPosArrival fires when a patient arrives. The item is the Patient.
var HookPosArrival = &hooking.HookPos{Name: "Arrival"}

// HookPosServiceStart fires when a server claims a patient. The item is the
// Patient and the detail is the server index.
var HookPosServiceStart = &hooking.HookPos{Name: "ServiceStart"}

// HookPosDeparture fires when a patient's service completes. The item is the
// Patient and the detail is the server index.
var HookPosDeparture = &hooking.HookPos{Name: "Departure"}

// HookPosStep fires at the end of every Step that advanced time. The item is
// the Snapshot.
var HookPosStep = &hooking.HookPos{Name: "Step"}

// PatientLogger logs the patient lifecycle.
type PatientLogger struct {
	logger logrus.FieldLogger
}

// NewPatientLogger creates a PatientLogger that writes at Debug level.
func NewPatientLogger(logger logrus.FieldLogger) *PatientLogger {
	return &PatientLogger{logger: logger}
}

// Func logs arrivals, service starts and departures.
func (l *PatientLogger) Func(ctx hooking.HookCtx) {
	p, ok := ctx.Item.(Patient)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"patient":  uint64(p.ID),
		"priority": p.Priority,
	}

	switch ctx.Pos {
	case HookPosArrival:
		fields["time"] = float64(p.ArrivalTime)
		l.logger.WithFields(fields).Debug("arrival")
	case HookPosServiceStart:
		fields["time"] = float64(*p.ServiceStart)
		fields["server"] = ctx.Detail
		l.logger.WithFields(fields).Debug("service start")
	case HookPosDeparture:
		fields["time"] = float64(*p.ServiceEnd)
		fields["server"] = ctx.Detail
		l.logger.WithFields(fields).Debug("departure")
	}
}
