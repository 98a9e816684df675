package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/clinicsim/clinic"
)

// Driver advances a clinic in real time, the way an interactive front end
// would: on every tick it steps the engine by time scale × step hours and
// records a history sample.
//
// All access to the engine goes through the Driver, which serializes it.
type Driver struct {
	lock sync.Mutex

	engine   *clinic.Engine
	history  *History
	progress *ProgressBar
	logger   logrus.FieldLogger

	step     float64
	tick     time.Duration
	duration float64
}

// NewDriver creates a Driver stepping 0.1 h every 50 ms with a history of
// DefaultHistoryCapacity samples.
func NewDriver(engine *clinic.Engine) *Driver {
	return &Driver{
		engine:  engine,
		history: NewHistory(DefaultHistoryCapacity),
		logger:  logrus.StandardLogger(),
		step:    0.1,
		tick:    50 * time.Millisecond,
	}
}

// WithStep sets the simulated hours per tick before time scaling.
func (d *Driver) WithStep(step float64) *Driver {
	d.step = step
	return d
}

// WithTick sets the real-time period between steps.
func (d *Driver) WithTick(tick time.Duration) *Driver {
	d.tick = tick
	return d
}

// WithHistoryCapacity sets how many samples are kept.
func (d *Driver) WithHistoryCapacity(capacity int) *Driver {
	d.history = NewHistory(capacity)
	return d
}

// WithDuration makes the driver pause the engine once simulated time
// reaches hours. Zero means no limit.
func (d *Driver) WithDuration(hours float64) *Driver {
	d.duration = hours
	return d
}

// WithLogger sets the logger.
func (d *Driver) WithLogger(logger logrus.FieldLogger) *Driver {
	d.logger = logger
	return d
}

// TrackProgress reports the progress of a bounded run into bar.
func (d *Driver) TrackProgress(bar *ProgressBar) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.progress = bar
}

// Run ticks until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	d.logger.WithFields(logrus.Fields{
		"engine": d.engine.Name(),
		"tick":   d.tick.String(),
		"step":   d.step,
	}).Info("driver started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopped")
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Tick advances the engine by one real-time tick if it is running.
func (d *Driver) Tick() {
	d.lock.Lock()
	defer d.lock.Unlock()

	dt := d.engine.Params().TimeScale * d.step
	if !(dt > 0) {
		dt = d.step
	}

	d.advance(dt)
}

// Step advances the engine by dt hours, as long as it is running.
func (d *Driver) Step(dt float64) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.advance(dt)
}

func (d *Driver) advance(dt float64) {
	if !d.engine.IsRunning() {
		return
	}

	if d.duration > 0 {
		remaining := d.duration - d.engine.Snapshot().SimTime
		if remaining <= 0 {
			d.engine.Pause()
			return
		}

		dt = min(dt, remaining)
	}

	d.engine.Step(dt)
	d.record()

	if d.duration > 0 && d.engine.Snapshot().SimTime >= d.duration {
		d.engine.Pause()
		d.logger.WithField("hours", d.duration).Info("run complete")
	}
}

func (d *Driver) record() {
	s := d.engine.Snapshot()

	busy := 0
	for _, slot := range s.InService {
		if slot.Patient != nil {
			busy++
		}
	}

	d.history.Add(Sample{
		SimTime:      s.SimTime,
		QueueLength:  len(s.Queue),
		SystemLength: len(s.Queue) + busy,
		Served:       s.ServedCount,
	})

	if d.progress != nil {
		d.progress.SetFinished(s.SimTime)
	}
}

// Do runs f with exclusive access to the engine.
func (d *Driver) Do(f func(e *clinic.Engine)) {
	d.lock.Lock()
	defer d.lock.Unlock()

	f(d.engine)
}

// Start begins a new run and clears the history.
func (d *Driver) Start() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.history.Clear()
	d.engine.Start()

	if d.progress != nil {
		d.progress.Reset()
	}
}

// Reset prepares a new run: the history is cleared and the engine restarted
// in the paused state.
func (d *Driver) Reset() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.history.Clear()
	d.engine.Start()
	d.engine.Pause()

	if d.progress != nil {
		d.progress.Reset()
	}
}

// Snapshot returns the current engine snapshot.
func (d *Driver) Snapshot() clinic.Snapshot {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.engine.Snapshot()
}

// History returns the recorded samples, oldest first.
func (d *Driver) History() []Sample {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.history.Samples()
}
