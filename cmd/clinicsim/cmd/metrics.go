package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/clinicsim/erlang"
)

func newMetricsCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the Erlang-C metrics of the configured clinic",
		Long: `metrics evaluates the closed-form M/M/c formulas for the ` +
			`configured λ, μ and c. Metrics that do not exist for an ` +
			`unstable system are printed as n/a, or null in JSON and YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output, "table", "json", "yaml"); err != nil {
				return err
			}

			sim := a.cfg.Sim
			m := erlang.C(sim.Lambda, sim.Mu, sim.Servers)

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, output, m); ok {
				return err
			}

			return printTheory(out, sim.Lambda, sim.Mu, sim.Servers, m)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")

	return cmd
}
