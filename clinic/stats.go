package clinic

import "github.com/sarchlab/clinicsim/timing"

// accumulators hold the running sums behind the empirical metrics.
type accumulators struct {
	totalWait   float64
	totalSystem float64
	served      int

	queueIntegral  float64
	systemIntegral float64
	lastUpdate     timing.VTimeInHour
}

// integrate extends the time-weighted integrals from the last update to now,
// with the lengths that held over that interval.
func (a *accumulators) integrate(now timing.VTimeInHour, queueLen, systemLen int) {
	width := float64(now - a.lastUpdate)
	if width <= 0 {
		return
	}

	a.queueIntegral += float64(queueLen) * width
	a.systemIntegral += float64(systemLen) * width
	a.lastUpdate = now
}

func (a *accumulators) depart(p *Patient) {
	wait, _ := p.WaitTime()
	system, _ := p.SystemTime()

	a.totalWait += wait
	a.totalSystem += system
	a.served++
}

func (a *accumulators) reset() {
	*a = accumulators{}
}

func (a *accumulators) meanWait() *float64 {
	if a.served == 0 {
		return nil
	}

	return value(a.totalWait / float64(a.served))
}

func (a *accumulators) meanSystem() *float64 {
	if a.served == 0 {
		return nil
	}

	return value(a.totalSystem / float64(a.served))
}

func (a *accumulators) meanQueueLength(now timing.VTimeInHour) *float64 {
	if now <= 0 {
		return nil
	}

	return value(a.queueIntegral / float64(now))
}

func (a *accumulators) meanSystemLength(now timing.VTimeInHour) *float64 {
	if now <= 0 {
		return nil
	}

	return value(a.systemIntegral / float64(now))
}

func value(v float64) *float64 {
	return &v
}
