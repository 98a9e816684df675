package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// Spec describes what a Report covers.
type Spec struct {
	Mu float64 `json:"mu" yaml:"mu" mapstructure:"mu"`

	// Servers is the server pool of the λ sweep.
	Servers int `json:"servers" yaml:"servers" mapstructure:"servers"`

	LambdaMin    float64 `json:"lambda_min" yaml:"lambda_min" mapstructure:"lambda_min"`
	LambdaMax    float64 `json:"lambda_max" yaml:"lambda_max" mapstructure:"lambda_max"`
	LambdaPoints int     `json:"lambda_points" yaml:"lambda_points" mapstructure:"lambda_points"`

	// ServerChoices are the server counts of the Pw grid and of the server
	// sweep.
	ServerChoices []int `json:"server_choices" yaml:"server_choices" mapstructure:"server_choices"`

	// FixedLambda is the load of the server sweep.
	FixedLambda float64 `json:"fixed_lambda" yaml:"fixed_lambda" mapstructure:"fixed_lambda"`
}

// DefaultSpec is μ=4, three servers, twelve λ points over [1, 10.5], server
// choices 1 to 4, and a server sweep at λ=8.
func DefaultSpec() Spec {
	return Spec{
		Mu:            4,
		Servers:       3,
		LambdaMin:     1,
		LambdaMax:     10.5,
		LambdaPoints:  12,
		ServerChoices: []int{1, 2, 3, 4},
		FixedLambda:   8,
	}
}

// Report gathers the sweeps of one Spec.
type Report struct {
	ID           string    `json:"id" yaml:"id"`
	Spec         Spec      `json:"spec" yaml:"spec"`
	Lambdas      []float64 `json:"lambda_values" yaml:"lambda_values"`
	StablePoints []Row     `json:"stable_points" yaml:"stable_points"`
	ServerSweep  []Row     `json:"servers_vs_w" yaml:"servers_vs_w"`
	WaitGrid     Grid      `json:"pw_grid" yaml:"pw_grid"`
}

// Build computes every sweep of spec.
func Build(spec Spec) Report {
	lambdas := Linspace(spec.LambdaMin, spec.LambdaMax, spec.LambdaPoints)

	return Report{
		ID:           xid.New().String(),
		Spec:         spec,
		Lambdas:      lambdas,
		StablePoints: LambdaSweep(spec.Mu, spec.Servers, lambdas),
		ServerSweep:  ServerSweep(spec.FixedLambda, spec.Mu, spec.ServerChoices),
		WaitGrid:     WaitProbabilityGrid(spec.Mu, spec.ServerChoices, lambdas),
	}
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encoding json: %w", err)
	}

	return nil
}

// WriteYAML writes the report as YAML.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encoding yaml: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: encoding yaml: %w", err)
	}

	return nil
}

var csvHeader = []string{"lambda", "mu", "servers", "rho", "p0", "pw", "lq", "wq", "w", "l"}

// WriteCSV writes the stable points of the λ sweep, one row per λ.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("report: writing csv: %w", err)
	}

	for _, row := range r.StablePoints {
		m := row.Metrics
		record := []string{
			formatFloat(row.Lambda),
			formatFloat(row.Mu),
			strconv.Itoa(row.Servers),
			formatNullable(m.Rho),
			formatNullable(m.P0),
			formatNullable(m.Pw),
			formatNullable(m.Lq),
			formatNullable(m.Wq),
			formatNullable(m.W),
			formatNullable(m.L),
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: writing csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: writing csv: %w", err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}

	return formatFloat(*v)
}
