package cmd

import (
	"os"
	"os/signal"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/clinicsim/clinic"
	"github.com/sarchlab/clinicsim/datarecording"
	"github.com/sarchlab/clinicsim/timing"
)

// minStep is the remaining time below which a headless run stops stepping.
const minStep = 1e-9

func newRunCommand(a *app) *cobra.Command {
	var (
		output    string
		logEvents bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clinic headless for a fixed simulated duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output, "table", "json", "yaml"); err != nil {
				return err
			}

			return a.run(cmd, output, logEvents)
		},
	}

	flags := cmd.Flags()
	flags.Float64("duration", 0, "simulated hours to run")
	flags.Float64("step", 0, "simulated hours per step")
	flags.Bool("record", false, "record patients and samples to SQLite")
	flags.String("record-path", "", "SQLite file to record to")
	flags.StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	flags.BoolVar(&logEvents, "log-events", false, "log every event and patient at debug level")

	a.bindLocal(cmd, map[string]string{
		"sim.duration":   "duration",
		"sim.step":       "step",
		"record.enabled": "record",
		"record.path":    "record-path",
	})

	return cmd
}

func (a *app) buildEngine(logEvents bool) *clinic.Engine {
	engine := clinic.MakeBuilder().
		WithParams(a.cfg.Params()).
		WithSeed(a.cfg.Sim.Seed).
		WithLogger(a.logger).
		Build("Clinic")

	if logEvents {
		if !a.logger.IsLevelEnabled(logrus.DebugLevel) {
			a.logger.SetLevel(logrus.DebugLevel)
		}

		engine.AcceptEventHook(timing.NewEventLogger(a.logger))
		engine.AcceptHook(clinic.NewPatientLogger(a.logger))
	}

	return engine
}

func (a *app) run(cmd *cobra.Command, output string, logEvents bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine := a.buildEngine(logEvents)

	var rec *recording
	if a.cfg.Record.Enabled {
		var err error

		rec, err = a.startRecording(engine)
		if err != nil {
			return err
		}
	}

	engine.Start()

	if rec != nil {
		rec.run.Start(engine)
	}

	remaining := a.cfg.Sim.Duration
	for remaining > minStep {
		if ctx.Err() != nil {
			a.logger.Warn("interrupted")
			break
		}

		dt := min(a.cfg.Sim.Step, remaining)
		engine.Step(dt)
		remaining -= dt
	}

	snap := engine.Snapshot()

	if rec != nil {
		if err := rec.finish(snap); err != nil {
			return err
		}

		a.logger.WithFields(logrus.Fields{
			"path":   rec.recorder.Path(),
			"run_id": rec.id,
		}).Info("run recorded")
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, snap); ok {
		return err
	}

	return printSnapshot(out, snap)
}

// recording bundles the recorders of one run.
type recording struct {
	id       string
	recorder datarecording.DataRecorder
	run      *datarecording.RunRecorder
}

func (a *app) startRecording(engine *clinic.Engine) (*recording, error) {
	recorder, err := datarecording.New(a.cfg.Record.Path)
	if err != nil {
		return nil, err
	}

	id := xid.New().String()

	engine.AcceptHook(datarecording.NewPatientRecorder(recorder, id))
	engine.AcceptHook(datarecording.NewSampleRecorder(recorder, id))

	return &recording{
		id:       id,
		recorder: recorder,
		run:      datarecording.NewRunRecorder(recorder, id),
	}, nil
}

func (r *recording) finish(s clinic.Snapshot) error {
	r.run.End(s)

	return r.recorder.Close()
}
