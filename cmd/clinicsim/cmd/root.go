// Package cmd provides the command-line interface of clinicsim.
package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/clinicsim/config"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *logrus.Logger

	// local holds the flag bindings of subcommands. Several commands bind
	// the same key, so a binding is only made for the command that runs.
	local map[*cobra.Command]map[string]string

	cfgFile string
	envFile string
	noColor bool
}

// NewRootCommand builds the clinicsim command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		v:      config.New(),
		logger: logrus.New(),
		local:  make(map[*cobra.Command]map[string]string),
	}

	root := &cobra.Command{
		Use:   "clinicsim",
		Short: "Simulate an M/M/c clinic and compare it with the Erlang-C formulas.",
		Long: `clinicsim runs a discrete-event simulation of a clinic with c ` +
			`servers, Poisson arrivals, exponential service and two patient ` +
			`classes, and reports the measured waiting times next to the ` +
			`closed-form M/M/c predictions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "",
		"config file (default is ./clinicsim.yaml or $HOME/.clinicsim.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	flags.Float64("lambda", 0, "arrival rate λ in patients per hour")
	flags.Float64("mu", 0, "service rate μ per server per hour")
	flags.Int("servers", 0, "number of servers c")
	flags.Float64("priority", 0, "fraction of priority patients")
	flags.Float64("time-scale", 0, "simulated hours per real-time step unit")
	flags.Uint64("seed", 0, "seed of the random stream")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (text or json)")

	a.bind(flags, map[string]string{
		"sim.lambda":     "lambda",
		"sim.mu":         "mu",
		"sim.servers":    "servers",
		"sim.priority":   "priority",
		"sim.time_scale": "time-scale",
		"sim.seed":       "seed",
		"log.level":      "log-level",
		"log.format":     "log-format",
	})

	root.AddCommand(
		newRunCommand(a),
		newServeCommand(a),
		newMetricsCommand(a),
		newSweepCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
	)

	return root
}

// Execute runs the command line and exits, running the atexit handlers.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// bind ties viper keys to flags. A flag only overrides the configuration
// when it is set on the command line.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// bindLocal records bindings of cmd's own flags, made when cmd runs.
func (a *app) bindLocal(cmd *cobra.Command, keys map[string]string) {
	a.local[cmd] = keys
}

func (a *app) load(cmd *cobra.Command) error {
	a.bind(cmd.Flags(), a.local[cmd])

	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger.SetOutput(cmd.ErrOrStderr())

	if err := cfg.ConfigureLogger(a.logger); err != nil {
		return err
	}

	if a.noColor {
		color.NoColor = true
	}

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.WithField("file", used).Debug("configuration loaded")
	}

	return nil
}

func (a *app) printf(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		a.logger.WithError(err).Debug("writing output")
	}
}

