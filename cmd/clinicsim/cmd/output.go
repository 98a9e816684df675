package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/clinicsim/clinic"
	"github.com/sarchlab/clinicsim/erlang"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgHiBlack)
	goodColor    = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	badColor     = color.New(color.FgRed, color.Bold)
)

const notAvailable = "n/a"

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if f == format {
			return nil
		}
	}

	return fmt.Errorf("unknown output format %q, want one of %s",
		format, strings.Join(allowed, ", "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}

// writeStructured writes v as JSON or YAML and reports whether format was
// one of them.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		return true, writeJSON(w, v)
	case "yaml":
		return true, writeYAML(w, v)
	}

	return false, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatValue(v *float64) string {
	if v == nil {
		return notAvailable
	}

	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func colorValue(v *float64) string {
	if v == nil {
		return warnColor.Sprint(notAvailable)
	}

	return formatValue(v)
}

func printTheory(w io.Writer, lambda, mu float64, c int, m erlang.Metrics) error {
	headingColor.Fprintf(w, "M/M/%d  λ=%g  μ=%g\n", c, lambda, mu)

	tw := newTable(w)
	rows := []struct {
		name string
		v    *float64
	}{
		{"rho", m.Rho},
		{"P0", m.P0},
		{"Pw", m.Pw},
		{"Lq", m.Lq},
		{"Wq (h)", m.Wq},
		{"W (h)", m.W},
		{"L", m.L},
	}

	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\n", labelColor.Sprint(r.name), colorValue(r.v))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if m.Stable() {
		goodColor.Fprintln(w, "stable")
	} else {
		badColor.Fprintln(w, "unstable: the queue grows without bound")
	}

	return nil
}

func printSnapshot(w io.Writer, s clinic.Snapshot) error {
	headingColor.Fprintf(w, "Clinic at t = %.3f h\n", s.SimTime)
	fmt.Fprintf(w, "  arrived %d, served %d, running %t\n",
		s.ArrivedCount, s.ServedCount, s.Running)

	priority := make(map[uint64]bool, len(s.PriorityPatients))
	for _, id := range s.PriorityPatients {
		priority[uint64(id)] = true
	}

	queue := make([]string, 0, len(s.Queue))
	for _, id := range s.Queue {
		if priority[uint64(id)] {
			queue = append(queue, warnColor.Sprintf("%d*", id))
		} else {
			queue = append(queue, strconv.FormatUint(uint64(id), 10))
		}
	}

	fmt.Fprintf(w, "  queue (%d): [%s]\n", len(s.Queue), strings.Join(queue, " "))

	tw := newTable(w)
	for _, slot := range s.InService {
		if slot.Patient == nil {
			fmt.Fprintf(tw, "  server %d\t%s\t\n", slot.Server, labelColor.Sprint("idle"))
			continue
		}

		fmt.Fprintf(tw, "  server %d\tpatient %d\t%.3f h left\n",
			slot.Server, *slot.Patient, slot.Remaining)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	headingColor.Fprintln(w, "Metrics")

	emp, th := s.Metrics.Empirical, s.Metrics.Theoretical
	tw = newTable(w)
	fmt.Fprintf(tw, "  \t%s\t%s\n",
		labelColor.Sprint("empirical"), labelColor.Sprint("theoretical"))

	rows := []struct {
		name   string
		e, thv *float64
	}{
		{"rho", emp.Rho, th.Rho},
		{"Wq (h)", emp.Wq, th.Wq},
		{"W (h)", emp.W, th.W},
		{"Lq", emp.Lq, th.Lq},
		{"L", emp.L, th.L},
	}

	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.name, colorValue(r.e), colorValue(r.thv))
	}

	return tw.Flush()
}
