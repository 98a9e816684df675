package clinic

import (
	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/timing"
)

// PatientState is where a patient is in its visit.
type PatientState int

// A patient moves from waiting to in-service to departed, never back.
const (
	Waiting PatientState = iota
	InService
	Departed
)

func (s PatientState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case InService:
		return "in-service"
	case Departed:
		return "departed"
	}

	return "unknown"
}

// Patient is the record of one visit. Each timestamp is written once; a nil
// timestamp has not happened yet.
type Patient struct {
	ID           idgen.ID            `json:"id" yaml:"id"`
	Priority     bool                `json:"priority" yaml:"priority"`
	ArrivalTime  timing.VTimeInHour  `json:"arrival_time" yaml:"arrival_time"`
	ServiceStart *timing.VTimeInHour `json:"service_start" yaml:"service_start"`
	ServiceEnd   *timing.VTimeInHour `json:"service_end" yaml:"service_end"`

	// Server is the slot that served the patient, or -1 while waiting.
	Server int `json:"server" yaml:"server"`
}

// State derives the lifecycle state from the timestamps.
func (p Patient) State() PatientState {
	switch {
	case p.ServiceEnd != nil:
		return Departed
	case p.ServiceStart != nil:
		return InService
	}

	return Waiting
}

// WaitTime returns service start minus arrival, once service has started.
func (p Patient) WaitTime() (float64, bool) {
	if p.ServiceStart == nil {
		return 0, false
	}

	return float64(*p.ServiceStart - p.ArrivalTime), true
}

// SystemTime returns service end minus arrival, once the patient has left.
func (p Patient) SystemTime() (float64, bool) {
	if p.ServiceEnd == nil {
		return 0, false
	}

	return float64(*p.ServiceEnd - p.ArrivalTime), true
}

func stamp(t timing.VTimeInHour) *timing.VTimeInHour {
	return &t
}
