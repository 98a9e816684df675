package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sarchlab/clinicsim/datarecording"
)

type historyOptions struct {
	table  string
	runID  string
	limit  int
	offset int
	output string
}

func newHistoryCommand(a *app) *cobra.Command {
	opts := historyOptions{}

	cmd := &cobra.Command{
		Use:   "history FILE",
		Short: "List the runs, patients or samples of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.output, "table", "json", "yaml"); err != nil {
				return err
			}

			return a.history(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.table, "table", "t", datarecording.RunTable,
		"table to list: runs, patients or samples")
	flags.StringVar(&opts.runID, "run", "", "only list rows of this run")
	flags.IntVar(&opts.limit, "limit", 50, "maximum number of rows, 0 for all")
	flags.IntVar(&opts.offset, "offset", 0, "number of rows to skip")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")

	return cmd
}

var historyOrder = map[string]string{
	datarecording.RunTable:     "StartTime",
	datarecording.PatientTable: "RunID, ID",
	datarecording.SampleTable:  "RunID, SimTime",
}

func (a *app) history(cmd *cobra.Command, path string, opts historyOptions) error {
	order, ok := historyOrder[opts.table]
	if !ok {
		return fmt.Errorf("unknown table %q", opts.table)
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(datarecording.RunTable, datarecording.RunEntry{})
	reader.MapTable(datarecording.PatientTable, datarecording.PatientEntry{})
	reader.MapTable(datarecording.SampleTable, datarecording.SampleEntry{})

	ctx := cmd.Context()

	tables, err := reader.ListTables(ctx)
	if err != nil {
		return err
	}

	if !slices.Contains(tables, opts.table) {
		return fmt.Errorf("%s has no %s table", path, opts.table)
	}

	params := datarecording.QueryParams{
		Limit:   opts.limit,
		Offset:  opts.offset,
		OrderBy: order,
	}

	if opts.runID != "" {
		params.Where = "RunID = ?"
		params.Args = []any{opts.runID}
	}

	rows, total, err := reader.Query(ctx, opts.table, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, opts.output, rows); ok {
		return err
	}

	headingColor.Fprintf(out, "%s: %d of %d rows\n", opts.table, len(rows), total)

	return printHistoryRows(out, rows)
}

func printHistoryRows(w io.Writer, rows []any) error {
	tw := newTable(w)

	for i, row := range rows {
		switch r := row.(type) {
		case *datarecording.RunEntry:
			if i == 0 {
				fmt.Fprintln(tw, "RUN\tSTARTED\tSEED\tλ\tμ\tc\tP(priority)\tHOURS\tARRIVED\tSERVED")
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%d\t%g\t%.3f\t%d\t%d\n",
				r.RunID, r.StartTime, r.Seed, r.Lambda, r.Mu, r.Servers,
				r.Priority, r.SimTime, r.Arrived, r.Served)
		case *datarecording.PatientEntry:
			if i == 0 {
				fmt.Fprintln(tw, "RUN\tPATIENT\tPRIORITY\tSERVER\tARRIVAL\tSTART\tEND\tWAIT")
			}

			fmt.Fprintf(tw, "%s\t%d\t%t\t%d\t%.4f\t%.4f\t%.4f\t%.4f\n",
				r.RunID, r.ID, r.Priority, r.Server, r.ArrivalTime,
				r.ServiceStart, r.ServiceEnd, r.WaitTime)
		case *datarecording.SampleEntry:
			if i == 0 {
				fmt.Fprintln(tw, "RUN\tTIME\tQUEUE\tSYSTEM\tSERVED\tWq\tW\tLq\tL")
			}

			fmt.Fprintf(tw, "%s\t%.3f\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
				r.RunID, r.SimTime, r.QueueLength, r.SystemLength, r.Served,
				formatValue(r.Wq), formatValue(r.W), formatValue(r.Lq), formatValue(r.L))
		}
	}

	return tw.Flush()
}
