package clinic

// Params are the knobs of the clinic model. They may change at any time; a
// change only affects future random draws and future assignment decisions.
type Params struct {
	// Lambda is the arrival rate in patients per hour.
	Lambda float64 `json:"lambda" yaml:"lambda"`

	// Mu is the service rate of a single server, per hour.
	Mu float64 `json:"mu" yaml:"mu"`

	// Servers is the number of servers, c.
	Servers int `json:"servers" yaml:"servers"`

	// Priority is the fraction of arrivals tagged as priority patients.
	Priority float64 `json:"priority" yaml:"priority"`

	// TimeScale tells a real-time driver how many simulated hours pass per
	// unit of real time. The model itself ignores it.
	TimeScale float64 `json:"time_scale" yaml:"time_scale"`
}

// DefaultParams returns λ=6, μ=4, c=2, no priority patients, time scale 1.
func DefaultParams() Params {
	return Params{
		Lambda:    6,
		Mu:        4,
		Servers:   2,
		Priority:  0,
		TimeScale: 1,
	}
}
