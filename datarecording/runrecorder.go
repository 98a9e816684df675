package datarecording

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sarchlab/clinicsim/clinic"
)

// RunTable is the table that describes recorded runs.
const RunTable = "runs"

// RunEntry is one recorded run: who ran it, with which parameters, and how
// far it got.
type RunEntry struct {
	RunID     string
	Engine    string
	Command   string
	WorkDir   string
	StartTime string
	EndTime   string
	Seed      string
	Lambda    float64
	Mu        float64
	Servers   int
	Priority  float64
	SimTime   float64
	Arrived   int
	Served    int
}

// RunRecorder writes one RunEntry per run.
type RunRecorder struct {
	recorder DataRecorder
	runID    string
	entry    RunEntry
}

// NewRunRecorder creates the runs table if needed.
func NewRunRecorder(recorder DataRecorder, runID string) *RunRecorder {
	recorder.CreateTable(RunTable, RunEntry{})

	return &RunRecorder{
		recorder: recorder,
		runID:    runID,
	}
}

// Start captures the execution context and the engine configuration.
func (r *RunRecorder) Start(e *clinic.Engine) {
	p := e.Params()

	workDir, err := os.Getwd()
	if err != nil {
		workDir = ""
	}

	r.entry = RunEntry{
		RunID:     r.runID,
		Engine:    e.Name(),
		Command:   strings.Join(os.Args, " "),
		WorkDir:   workDir,
		StartTime: time.Now().Format(time.RFC3339Nano),
		Seed:      strconv.FormatUint(e.Seed(), 10),
		Lambda:    p.Lambda,
		Mu:        p.Mu,
		Servers:   p.Servers,
		Priority:  p.Priority,
	}
}

// End stores the run with its final state and flushes the recorder.
func (r *RunRecorder) End(s clinic.Snapshot) {
	r.entry.EndTime = time.Now().Format(time.RFC3339Nano)
	r.entry.SimTime = s.SimTime
	r.entry.Arrived = s.ArrivedCount
	r.entry.Served = s.ServedCount

	r.recorder.InsertData(RunTable, r.entry)
	r.recorder.Flush()
}
