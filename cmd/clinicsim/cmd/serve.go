package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/clinicsim/monitoring"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		stopAfter float64
		logEvents bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clinic in real time behind the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd, stopAfter, logEvents)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 0, "port of the dashboard, 0 picks a free one")
	flags.Duration("tick", 0, "wall-clock interval between steps")
	flags.Float64("step", 0, "simulated hours per tick before time scaling")
	flags.Bool("open-browser", false, "open the dashboard in a browser")
	flags.Bool("record", false, "record patients and samples to SQLite")
	flags.String("record-path", "", "SQLite file to record to")
	flags.Float64Var(&stopAfter, "stop-after", 0,
		"pause after this many simulated hours, 0 runs until interrupted")
	flags.BoolVar(&logEvents, "log-events", false, "log every event and patient at debug level")

	a.bindLocal(cmd, map[string]string{
		"serve.port":         "port",
		"serve.tick":         "tick",
		"serve.open_browser": "open-browser",
		"sim.step":           "step",
		"record.enabled":     "record",
		"record.path":        "record-path",
	})

	return cmd
}

func (a *app) serve(cmd *cobra.Command, stopAfter float64, logEvents bool) error {
	engine := a.buildEngine(logEvents)

	var rec *recording
	if a.cfg.Record.Enabled {
		var err error

		rec, err = a.startRecording(engine)
		if err != nil {
			return err
		}
	}

	driver := monitoring.NewDriver(engine).
		WithStep(a.cfg.Sim.Step).
		WithTick(a.cfg.Serve.Tick).
		WithLogger(a.logger)

	monitor := monitoring.NewMonitor(driver).
		WithPortNumber(a.cfg.Serve.Port).
		WithBrowser(a.cfg.Serve.OpenBrowser).
		WithLogger(a.logger)

	if stopAfter > 0 {
		driver.WithDuration(stopAfter)
		driver.TrackProgress(monitor.CreateProgressBar(engine.Name(), stopAfter))
	}

	driver.Start()

	if rec != nil {
		rec.run.Start(engine)
	}

	url, err := monitor.StartServer()
	if err != nil {
		return err
	}

	a.printf(cmd.OutOrStdout(), "%s %s\n", headingColor.Sprint("Dashboard:"), url)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := driver.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := monitor.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("shutting down the dashboard")
	}

	if rec != nil {
		if err := rec.finish(driver.Snapshot()); err != nil {
			return err
		}

		a.logger.WithField("path", rec.recorder.Path()).Info("run recorded")
	}

	return runErr
}
