package datarecording

import (
	"github.com/sarchlab/clinicsim/clinic"
	"github.com/sarchlab/clinicsim/hooking"
)

// PatientTable and SampleTable are the tables written by the clinic hooks.
const (
	PatientTable = "patients"
	SampleTable  = "samples"
)

// PatientEntry is one departed patient.
type PatientEntry struct {
	RunID        string
	ID           uint64
	Priority     bool
	Server       int
	ArrivalTime  float64
	ServiceStart float64
	ServiceEnd   float64
	WaitTime     float64
	SystemTime   float64
}

// SampleEntry is the clinic state at the end of one step. The empirical
// metrics are NULL until they exist.
type SampleEntry struct {
	RunID        string
	SimTime      float64
	QueueLength  int
	SystemLength int
	Arrived      int
	Served       int
	Wq           *float64
	W            *float64
	Lq           *float64
	L            *float64
}

// PatientRecorder is a hook that records every departure.
type PatientRecorder struct {
	recorder DataRecorder
	runID    string
}

// NewPatientRecorder creates the patients table if needed.
func NewPatientRecorder(recorder DataRecorder, runID string) *PatientRecorder {
	recorder.CreateTable(PatientTable, PatientEntry{})

	return &PatientRecorder{recorder: recorder, runID: runID}
}

// Func records departed patients.
func (r *PatientRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != clinic.HookPosDeparture {
		return
	}

	p, ok := ctx.Item.(clinic.Patient)
	if !ok || p.ServiceEnd == nil {
		return
	}

	wait, _ := p.WaitTime()
	system, _ := p.SystemTime()

	r.recorder.InsertData(PatientTable, PatientEntry{
		RunID:        r.runID,
		ID:           uint64(p.ID),
		Priority:     p.Priority,
		Server:       p.Server,
		ArrivalTime:  float64(p.ArrivalTime),
		ServiceStart: float64(*p.ServiceStart),
		ServiceEnd:   float64(*p.ServiceEnd),
		WaitTime:     wait,
		SystemTime:   system,
	})
}

// SampleRecorder is a hook that records the clinic after every step.
type SampleRecorder struct {
	recorder DataRecorder
	runID    string
}

// NewSampleRecorder creates the samples table if needed.
func NewSampleRecorder(recorder DataRecorder, runID string) *SampleRecorder {
	recorder.CreateTable(SampleTable, SampleEntry{})

	return &SampleRecorder{recorder: recorder, runID: runID}
}

// Func records step snapshots.
func (r *SampleRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != clinic.HookPosStep {
		return
	}

	s, ok := ctx.Item.(clinic.Snapshot)
	if !ok {
		return
	}

	busy := 0
	for _, slot := range s.InService {
		if slot.Patient != nil {
			busy++
		}
	}

	empirical := s.Metrics.Empirical
	r.recorder.InsertData(SampleTable, SampleEntry{
		RunID:        r.runID,
		SimTime:      s.SimTime,
		QueueLength:  len(s.Queue),
		SystemLength: len(s.Queue) + busy,
		Arrived:      s.ArrivedCount,
		Served:       s.ServedCount,
		Wq:           empirical.Wq,
		W:            empirical.W,
		Lq:           empirical.Lq,
		L:            empirical.L,
	})
}
