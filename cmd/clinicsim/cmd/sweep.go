package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/clinicsim/report"
)

func newSweepCommand(a *app) *cobra.Command {
	var (
		spec    = report.DefaultSpec()
		format  string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Tabulate the Erlang-C metrics over ranges of λ and c",
		Long: `sweep writes a report with the stable points of a λ sweep, ` +
			`the waiting probability over λ for several server counts, and ` +
			`the time in system over server counts at a fixed λ. ` +
			`The global --mu and --servers flags override the defaults of ` +
			`the report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "json", "yaml", "csv"); err != nil {
				return err
			}

			if cmd.Flags().Changed("mu") {
				spec.Mu = a.cfg.Sim.Mu
			}

			if cmd.Flags().Changed("servers") {
				spec.Servers = a.cfg.Sim.Servers
			}

			r := report.Build(spec)
			a.logger.WithField("report", r.ID).Debug("report built")

			if outFile == "" {
				return writeReport(cmd.OutOrStdout(), format, r)
			}

			f, err := os.Create(outFile)
			if err != nil {
				return fmt.Errorf("creating report: %w", err)
			}

			if err := writeReport(f, format, r); err != nil {
				f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return err
			}

			a.printf(cmd.OutOrStdout(), "%s %s\n", goodColor.Sprint("wrote"), outFile)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&spec.LambdaMin, "lambda-min", spec.LambdaMin, "smallest λ of the sweep")
	flags.Float64Var(&spec.LambdaMax, "lambda-max", spec.LambdaMax, "largest λ of the sweep")
	flags.IntVar(&spec.LambdaPoints, "points", spec.LambdaPoints, "number of λ values")
	flags.IntSliceVar(&spec.ServerChoices, "server-choices", spec.ServerChoices,
		"server counts of the Pw grid and the server sweep")
	flags.Float64Var(&spec.FixedLambda, "fixed-lambda", spec.FixedLambda, "λ of the server sweep")
	flags.StringVarP(&format, "format", "f", "json", "report format: json, yaml or csv")
	flags.StringVar(&outFile, "out", "", "file to write, stdout when empty")

	return cmd
}

func writeReport(w io.Writer, format string, r report.Report) error {
	switch format {
	case "yaml":
		return r.WriteYAML(w)
	case "csv":
		return r.WriteCSV(w)
	default:
		return r.WriteJSON(w)
	}
}
