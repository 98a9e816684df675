package clinic

import (
	"slices"

	"github.com/sarchlab/clinicsim/erlang"
	"github.com/sarchlab/clinicsim/idgen"
)

// Snapshot is a read-only copy of the engine state. Nothing in it aliases the
// engine, so later steps never change a snapshot already taken.
type Snapshot struct {
	SimTime float64 `json:"sim_time" yaml:"sim_time"`

	// Queue lists waiting patients, priority patients first, FIFO within
	// each class.
	Queue []idgen.ID `json:"queue" yaml:"queue"`

	// InService has one entry per server slot.
	InService []SlotView `json:"in_service" yaml:"in_service"`

	Metrics Metrics `json:"metrics" yaml:"metrics"`

	// PriorityPatients are the priority patients still in the clinic,
	// waiting or in service, in ascending id order.
	PriorityPatients []idgen.ID `json:"priority_patients" yaml:"priority_patients"`

	Params       Params `json:"params" yaml:"params"`
	ServedCount  int    `json:"served_count" yaml:"served_count"`
	ArrivedCount int    `json:"arrived_count" yaml:"arrived_count"`
	Running      bool   `json:"running" yaml:"running"`
}

// SlotView describes one server. Patient is nil and Remaining is 0 when the
// server is idle.
type SlotView struct {
	Server    int       `json:"server" yaml:"server"`
	Patient   *idgen.ID `json:"patient" yaml:"patient"`
	Remaining float64   `json:"remaining" yaml:"remaining"`
}

// Metrics pairs what the run measured with what the closed form predicts.
type Metrics struct {
	Empirical   Empirical      `json:"empirical" yaml:"empirical"`
	Theoretical erlang.Metrics `json:"theoretical" yaml:"theoretical"`
}

// Empirical are the metrics measured on the run so far. Wq and W average
// over served patients; Lq and L are time averages over the whole run.
type Empirical struct {
	Rho *float64 `json:"rho" yaml:"rho"`
	Wq  *float64 `json:"wq" yaml:"wq"`
	W   *float64 `json:"w" yaml:"w"`
	Lq  *float64 `json:"lq" yaml:"lq"`
	L   *float64 `json:"l" yaml:"l"`
}

// Snapshot captures the current state. It does not modify the engine.
func (e *Engine) Snapshot() Snapshot {
	now := e.sim.CurrentTime()

	s := Snapshot{
		SimTime:      float64(now),
		Params:       e.params,
		ServedCount:  e.stats.served,
		ArrivedCount: int(e.ids.Last()),
		Running:      e.running,
	}

	s.Queue = make([]idgen.ID, 0, e.queueLength())
	s.Queue = e.priorityQueue.AppendTo(s.Queue)
	s.Queue = e.regularQueue.AppendTo(s.Queue)

	s.InService = make([]SlotView, len(e.slots))
	for i, slot := range e.slots {
		s.InService[i] = SlotView{Server: i}
		if !slot.busy {
			continue
		}

		id := slot.patient
		s.InService[i].Patient = &id
		s.InService[i].Remaining = max(float64(slot.completesAt-now), 0)
	}

	s.PriorityPatients = e.priorityPatients()

	lambda, mu, c := e.params.Lambda, e.params.Mu, e.params.Servers
	s.Metrics = Metrics{
		Empirical: Empirical{
			Rho: erlang.Utilization(lambda, mu, c),
			Wq:  e.stats.meanWait(),
			W:   e.stats.meanSystem(),
			Lq:  e.stats.meanQueueLength(now),
			L:   e.stats.meanSystemLength(now),
		},
		Theoretical: erlang.C(lambda, mu, c),
	}

	return s
}

func (e *Engine) priorityPatients() []idgen.ID {
	ids := make([]idgen.ID, 0)

	for id, p := range e.patients {
		if p.Priority && p.ServiceEnd == nil {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids
}
