// Package clinic simulates an M/M/c clinic with two patient classes.
//
// Patients arrive as a Poisson process, wait in one of two FIFO queues, and
// are served by c identical servers with exponential service times. Priority
// patients are always served before regular ones, but a patient in service is
// never interrupted.
package clinic

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/clinicsim/hooking"
	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/timing"
	"github.com/sarchlab/clinicsim/variate"
)

// Engine owns one clinic: its parameters, patients, queues, servers and
// statistics. It is advanced only through Step and is not safe for
// concurrent use.
type Engine struct {
	*hooking.HookableBase

	name   string
	logger logrus.FieldLogger

	params Params
	seed   uint64

	sim *timing.SerialEngine
	rng *variate.Source
	ids idgen.Generator

	patients      map[idgen.ID]*Patient
	priorityQueue patientQueue
	regularQueue  patientQueue
	slots         []serverSlot
	stats         accumulators

	started bool
	running bool
}

// Builder can build clinic engines.
type Builder struct {
	params Params
	seed   uint64
	logger logrus.FieldLogger
}

// MakeBuilder returns a Builder with the default parameters and seed 1.
func MakeBuilder() Builder {
	return Builder{
		params: DefaultParams(),
		seed:   1,
		logger: logrus.StandardLogger(),
	}
}

// WithParams sets the initial parameters.
func (b Builder) WithParams(p Params) Builder {
	b.params = p
	return b
}

// WithSeed sets the seed of the random stream.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithLogger sets where the engine reports failures.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// Build creates an engine. The engine is idle until Start is called.
func (b Builder) Build(name string) *Engine {
	e := &Engine{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		logger:       b.logger,
		params:       b.params,
		seed:         b.seed,
		sim:          timing.NewSerialEngine(),
		rng:          variate.New(b.seed),
		ids:          idgen.New(),
		patients:     make(map[idgen.ID]*Patient),
	}

	return e
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// AcceptEventHook registers a hook on the underlying event scheduler, such
// as a timing.EventLogger.
func (e *Engine) AcceptEventHook(hook hooking.Hook) {
	e.sim.AcceptHook(hook)
}

// SetParams changes the arrival rate, the service rate and the server count.
// The number of server slots only changes at the next Start.
func (e *Engine) SetParams(lambda, mu float64, servers int) {
	e.params.Lambda = lambda
	e.params.Mu = mu
	e.params.Servers = servers
}

// SetPriorityProbability sets the fraction of arrivals tagged priority.
func (e *Engine) SetPriorityProbability(p float64) {
	e.params.Priority = p
}

// SetTimeScale records the advisory time scale.
func (e *Engine) SetTimeScale(scale float64) {
	e.params.TimeScale = scale
}

// SetSeed sets the seed used by the next Start.
func (e *Engine) SetSeed(seed uint64) {
	e.seed = seed
}

// Seed returns the seed used by the next Start.
func (e *Engine) Seed() uint64 {
	return e.seed
}

// Params returns the current parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Start discards any previous run and begins a new one at time zero with
// c fresh idle servers and the first arrival scheduled.
func (e *Engine) Start() {
	e.sim.Reset()
	e.rng = variate.New(e.seed)
	e.ids = idgen.New()

	e.patients = make(map[idgen.ID]*Patient)
	e.priorityQueue.Clear()
	e.regularQueue.Clear()
	e.slots = make([]serverSlot, max(e.params.Servers, 0))
	e.stats.reset()

	e.started = true
	e.running = true

	e.scheduleNextArrival(0)
}

// Pause makes Step a no-op until Resume.
func (e *Engine) Pause() {
	e.running = false
}

// Resume lets Step advance the model again. It does nothing before the first
// Start.
func (e *Engine) Resume() {
	if !e.started {
		return
	}

	e.running = true
}

// IsRunning reports whether Step currently advances the model.
func (e *Engine) IsRunning() bool {
	return e.running
}

// Step advances simulated time by dt hours, firing every arrival and service
// completion on the way. It is a no-op before Start, while paused, or when dt
// is not a positive finite number.
func (e *Engine) Step(dt float64) {
	if !e.running || !(dt > 0) || math.IsInf(dt, 1) {
		return
	}

	target := e.sim.CurrentTime() + timing.VTimeInHour(dt)

	err := e.sim.RunUntil(target)
	if err != nil {
		e.logger.WithError(err).WithField("engine", e.name).
			Error("clinic: step aborted")
	}

	e.integrate(e.sim.CurrentTime())

	if e.NumHooks() > 0 {
		e.InvokeHook(hooking.HookCtx{
			Domain: e,
			Pos:    HookPosStep,
			Item:   e.Snapshot(),
		})
	}
}

// Patient returns a copy of the record of a patient of the current run.
func (e *Engine) Patient(id idgen.ID) (Patient, bool) {
	p, ok := e.patients[id]
	if !ok {
		return Patient{}, false
	}

	return *p, true
}

// Handle processes the engine's own events.
func (e *Engine) Handle(event any) error {
	now := e.sim.CurrentTime()

	switch evt := event.(type) {
	case arrivalEvent:
		e.handleArrival(now)
	case completionEvent:
		e.handleCompletion(now, evt)
	default:
		return fmt.Errorf("clinic: unknown event type %T", event)
	}

	return nil
}

func (e *Engine) handleArrival(now timing.VTimeInHour) {
	priority := e.rng.IsPriority(e.params.Priority)
	e.admit(now, priority)
	e.scheduleNextArrival(now)
}

// admit creates a patient, queues it, and lets idle servers claim it.
func (e *Engine) admit(now timing.VTimeInHour, priority bool) *Patient {
	e.integrate(now)

	p := &Patient{
		ID:          e.ids.Generate(),
		Priority:    priority,
		ArrivalTime: now,
		Server:      -1,
	}
	e.patients[p.ID] = p

	if priority {
		e.priorityQueue.Push(p.ID)
	} else {
		e.regularQueue.Push(p.ID)
	}

	e.invokePatientHook(HookPosArrival, p, nil)

	e.assign(now)

	return p
}

func (e *Engine) scheduleNextArrival(now timing.VTimeInHour) {
	gap := e.rng.Interarrival(e.params.Lambda)
	if math.IsInf(gap, 1) {
		return
	}

	e.sim.Schedule(timing.ScheduledEvent{
		Event:   arrivalEvent{},
		Time:    now + timing.VTimeInHour(gap),
		Handler: e,
	})
}

func (e *Engine) handleCompletion(now timing.VTimeInHour, evt completionEvent) {
	e.integrate(now)

	if evt.server < 0 || evt.server >= len(e.slots) {
		return
	}

	slot := &e.slots[evt.server]
	if !slot.busy || slot.patient != evt.patient {
		return
	}

	p := e.patients[evt.patient]
	p.ServiceEnd = stamp(now)
	e.stats.depart(p)

	*slot = serverSlot{}

	e.invokePatientHook(HookPosDeparture, p, evt.server)

	e.assign(now)
}

// assign lets every idle server claim the next waiting patient, priority
// queue first. A server whose service sample is infinite stays idle and the
// patient keeps its place at the head of the queue.
func (e *Engine) assign(now timing.VTimeInHour) {
	for i := range e.slots {
		slot := &e.slots[i]
		if slot.busy {
			continue
		}

		queue := e.nextQueue()
		if queue == nil {
			return
		}

		duration := e.rng.Service(e.params.Mu)
		if math.IsInf(duration, 1) {
			continue
		}

		id, _ := queue.Pop()
		p := e.patients[id]
		p.ServiceStart = stamp(now)
		p.Server = i

		slot.busy = true
		slot.patient = id
		slot.completesAt = now + timing.VTimeInHour(duration)

		e.sim.Schedule(timing.ScheduledEvent{
			Event:   completionEvent{server: i, patient: id},
			Time:    slot.completesAt,
			Handler: e,
		})

		e.invokePatientHook(HookPosServiceStart, p, i)
	}
}

func (e *Engine) nextQueue() *patientQueue {
	if e.priorityQueue.Len() > 0 {
		return &e.priorityQueue
	}

	if e.regularQueue.Len() > 0 {
		return &e.regularQueue
	}

	return nil
}

func (e *Engine) integrate(now timing.VTimeInHour) {
	queueLen := e.queueLength()
	e.stats.integrate(now, queueLen, queueLen+e.busyServers())
}

func (e *Engine) queueLength() int {
	return e.priorityQueue.Len() + e.regularQueue.Len()
}

func (e *Engine) busyServers() int {
	n := 0

	for _, s := range e.slots {
		if s.busy {
			n++
		}
	}

	return n
}

func (e *Engine) invokePatientHook(pos *hooking.HookPos, p *Patient, detail any) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    pos,
		Item:   *p,
		Detail: detail,
	})
}
