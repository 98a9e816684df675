package monitoring

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/clinicsim/clinic"
)

func newTestDriver() *Driver {
	logger, _ := test.NewNullLogger()
	engine := clinic.MakeBuilder().WithSeed(5).WithLogger(logger).Build("Clinic")

	return NewDriver(engine).WithLogger(logger)
}

var _ = Describe("Driver", func() {
	var d *Driver

	BeforeEach(func() {
		d = newTestDriver()
	})

	It("should not tick before the first start", func() {
		d.Tick()

		Expect(d.Snapshot().SimTime).To(BeZero())
		Expect(d.History()).To(BeEmpty())
	})

	It("should step by time scale times step on every tick", func() {
		d.WithStep(0.25)
		d.Start()
		d.Do(func(e *clinic.Engine) { e.SetTimeScale(2) })

		d.Tick()
		d.Tick()

		Expect(d.Snapshot().SimTime).To(Equal(1.0))
		Expect(d.History()).To(HaveLen(2))
		Expect(d.History()[1].SimTime).To(Equal(1.0))
	})

	It("should fall back to the plain step for a non-positive time scale", func() {
		d.WithStep(0.5)
		d.Start()
		d.Do(func(e *clinic.Engine) { e.SetTimeScale(0) })

		d.Tick()

		Expect(d.Snapshot().SimTime).To(Equal(0.5))
	})

	It("should not tick while paused", func() {
		d.Start()
		d.Do(func(e *clinic.Engine) { e.Pause() })

		d.Tick()

		Expect(d.Snapshot().SimTime).To(BeZero())
		Expect(d.History()).To(BeEmpty())
	})

	It("should reset into a paused fresh run", func() {
		d.Start()
		d.Step(3)
		Expect(d.History()).NotTo(BeEmpty())

		d.Reset()

		s := d.Snapshot()
		Expect(s.SimTime).To(BeZero())
		Expect(s.Running).To(BeFalse())
		Expect(d.History()).To(BeEmpty())
	})

	It("should stop at the configured duration", func() {
		bar := &ProgressBar{Total: 1}
		d.WithStep(0.3).WithDuration(1)
		d.TrackProgress(bar)
		d.Start()

		for i := 0; i < 10; i++ {
			d.Tick()
		}

		s := d.Snapshot()
		Expect(s.SimTime).To(BeNumerically("~", 1.0, 1e-12))
		Expect(s.Running).To(BeFalse())
		Expect(bar.Done()).To(BeTrue())
	})

	It("should keep ticking until cancelled", func() {
		d.WithTick(time.Millisecond)
		d.Start()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)

		go func() { done <- d.Run(ctx) }()

		Eventually(func() float64 { return d.Snapshot().SimTime }).
			Should(BeNumerically(">", 0))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
