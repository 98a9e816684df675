package clinic

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/clinicsim/erlang"
	"github.com/sarchlab/clinicsim/hooking"
	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/timing"
	"github.com/sarchlab/clinicsim/variate"
)

func newEngine(p Params, seed uint64) *Engine {
	logger, _ := test.NewNullLogger()

	return MakeBuilder().
		WithParams(p).
		WithSeed(seed).
		WithLogger(logger).
		Build("Clinic")
}

func params(lambda, mu float64, c int) Params {
	p := DefaultParams()
	p.Lambda = lambda
	p.Mu = mu
	p.Servers = c

	return p
}

// expectConsistent checks that every patient in the clinic is in exactly one
// place and that the places agree with the patient records.
func expectConsistent(e *Engine) {
	seen := make(map[idgen.ID]bool)
	s := e.Snapshot()

	for _, id := range s.Queue {
		Expect(seen[id]).To(BeFalse())
		seen[id] = true

		p, ok := e.Patient(id)
		Expect(ok).To(BeTrue())
		Expect(p.State()).To(Equal(Waiting))
	}

	busy := 0
	for _, slot := range s.InService {
		if slot.Patient == nil {
			Expect(slot.Remaining).To(BeZero())
			continue
		}

		busy++
		Expect(seen[*slot.Patient]).To(BeFalse())
		seen[*slot.Patient] = true

		p, ok := e.Patient(*slot.Patient)
		Expect(ok).To(BeTrue())
		Expect(p.State()).To(Equal(InService))
		Expect(p.Server).To(Equal(slot.Server))
		Expect(slot.Remaining).To(BeNumerically(">=", 0))
	}

	Expect(s.ArrivedCount).To(Equal(s.ServedCount + len(s.Queue) + busy))

	for id := idgen.ID(1); id <= idgen.ID(s.ArrivedCount); id++ {
		p, ok := e.Patient(id)
		Expect(ok).To(BeTrue())

		if p.ServiceEnd != nil {
			Expect(*p.ServiceEnd).To(BeNumerically(">=", p.ArrivalTime))
			Expect(*p.ServiceEnd).To(BeNumerically(">=", *p.ServiceStart))
		}
	}
}

var _ = Describe("Engine", func() {
	var e *Engine

	BeforeEach(func() {
		e = newEngine(DefaultParams(), 1)
	})

	Context("before start", func() {
		It("should use the default parameters", func() {
			Expect(e.Name()).To(Equal("Clinic"))
			Expect(e.Params()).To(Equal(Params{
				Lambda: 6, Mu: 4, Servers: 2, Priority: 0, TimeScale: 1,
			}))
			Expect(e.IsRunning()).To(BeFalse())
		})

		It("should ignore steps", func() {
			e.Step(1)

			s := e.Snapshot()
			Expect(s.SimTime).To(BeZero())
			Expect(s.ArrivedCount).To(BeZero())
			Expect(s.InService).To(BeEmpty())
		})

		It("should not resume", func() {
			e.Resume()
			Expect(e.IsRunning()).To(BeFalse())
		})
	})

	Context("after start", func() {
		BeforeEach(func() {
			e.Start()
		})

		It("should be running at time zero with idle servers", func() {
			s := e.Snapshot()

			Expect(e.IsRunning()).To(BeTrue())
			Expect(s.SimTime).To(BeZero())
			Expect(s.Queue).To(BeEmpty())
			Expect(s.InService).To(Equal([]SlotView{{Server: 0}, {Server: 1}}))
			Expect(s.Metrics.Empirical.Wq).To(BeNil())
			Expect(s.Metrics.Empirical.W).To(BeNil())
			Expect(s.Metrics.Empirical.Lq).To(BeNil())
			Expect(s.Metrics.Empirical.L).To(BeNil())
			Expect(*s.Metrics.Empirical.Rho).To(Equal(0.75))
		})

		It("should park the clock at the end of each step", func() {
			e.Step(0.25)
			Expect(e.Snapshot().SimTime).To(Equal(0.25))

			e.Step(0.5)
			Expect(e.Snapshot().SimTime).To(Equal(0.75))
		})

		It("should ignore non-positive and non-finite steps", func() {
			e.Step(1)
			before := e.Snapshot()

			e.Step(0)
			e.Step(-1)
			e.Step(math.NaN())
			e.Step(math.Inf(1))

			Expect(e.Snapshot()).To(Equal(before))
		})

		It("should not advance while paused", func() {
			e.Step(1)
			e.Pause()
			Expect(e.IsRunning()).To(BeFalse())

			before := e.Snapshot()
			e.Step(1)
			Expect(e.Snapshot().SimTime).To(Equal(before.SimTime))
			Expect(e.Snapshot().ArrivedCount).To(Equal(before.ArrivedCount))

			e.Resume()
			e.Step(1)
			Expect(e.Snapshot().SimTime).To(Equal(2.0))
		})

		It("should return identical snapshots when nothing happens", func() {
			e.Step(3)

			Expect(e.Snapshot()).To(Equal(e.Snapshot()))
		})

		It("should not let snapshots alias the engine", func() {
			e.SetParams(6, 0, 2)
			e.Start()
			e.Step(3)

			s := e.Snapshot()
			kept := e.Snapshot()
			Expect(s.Queue).NotTo(BeEmpty())

			s.Queue[0] = 9999
			Expect(e.Snapshot().Queue[0]).NotTo(Equal(idgen.ID(9999)))

			e.Step(3)
			Expect(e.Snapshot()).NotTo(Equal(kept))
			Expect(kept.SimTime).To(Equal(3.0))
		})

		It("should keep its books consistent", func() {
			e.SetPriorityProbability(0.3)
			e.Start()

			for i := 0; i < 200; i++ {
				e.Step(0.05)
				expectConsistent(e)
			}
		})

		It("should only grow the clock and the counters", func() {
			e.SetPriorityProbability(0.5)
			e.Start()

			var (
				lastTime   float64
				lastServed int
				lastWait   float64
				lastSystem float64
			)

			steps := []float64{0.01, 0.3, 0.07, 1, 0.5, 2, 0.001, 0.2}
			for round := 0; round < 10; round++ {
				for _, dt := range steps {
					e.Step(dt)
					s := e.Snapshot()

					Expect(s.SimTime).To(BeNumerically(">=", lastTime))
					Expect(s.ServedCount).To(BeNumerically(">=", lastServed))
					Expect(e.stats.totalWait).To(BeNumerically(">=", lastWait))
					Expect(e.stats.totalSystem).To(BeNumerically(">=", lastSystem))

					lastTime = s.SimTime
					lastServed = s.ServedCount
					lastWait = e.stats.totalWait
					lastSystem = e.stats.totalSystem
				}
			}
		})
	})

	Context("dispatch", func() {
		It("should serve a patient who finds an idle server at once", func() {
			e = newEngine(params(6, 4, 1), 5)
			e.Start()

			for i := 0; i < 100000 && e.Snapshot().ArrivedCount == 0; i++ {
				e.Step(0.01)
			}

			p, ok := e.Patient(1)
			Expect(ok).To(BeTrue())
			Expect(p.ServiceStart).NotTo(BeNil())
			Expect(*p.ServiceStart).To(Equal(p.ArrivalTime))
			wait, _ := p.WaitTime()
			Expect(wait).To(BeZero())
		})

		It("should account exactly one service for a lone patient", func() {
			e = newEngine(params(0, 4, 1), 9)
			e.Start()

			p := e.admit(0, false)
			Expect(*p.ServiceStart).To(Equal(timing.VTimeInHour(0)))

			e.Step(1000)

			expected := variate.New(9).Service(4)
			s := e.Snapshot()

			Expect(s.ServedCount).To(Equal(1))
			Expect(e.stats.totalSystem).To(Equal(expected))
			Expect(e.stats.totalWait).To(BeZero())
			Expect(*s.Metrics.Empirical.W).To(Equal(expected))
		})

		It("should integrate one busy server over its whole service", func() {
			e = newEngine(params(0, 4, 1), 11)
			e.Start()
			e.admit(0, false)

			e.Step(50)

			p, _ := e.Patient(1)
			T := float64(*p.ServiceEnd)
			Expect(T).To(BeNumerically(">", 0))
			Expect(e.stats.systemIntegral).To(Equal(T))
			Expect(e.stats.queueIntegral).To(BeZero())
		})

		It("should order priority patients first, FIFO within class", func() {
			e = newEngine(params(0, 4, 0), 1)
			e.Start()

			a := e.admit(0, false)
			b := e.admit(0, true)
			c := e.admit(0, true)

			s := e.Snapshot()
			Expect(s.Queue).To(Equal([]idgen.ID{b.ID, c.ID, a.ID}))
			Expect(s.PriorityPatients).To(Equal([]idgen.ID{b.ID, c.ID}))
		})

		It("should let a freed server pick the priority patient", func() {
			e = newEngine(params(0, 4, 1), 3)
			e.Start()

			first := e.admit(0, false)
			regular := e.admit(0, false)
			priority := e.admit(0, true)
			Expect(e.Snapshot().Queue).To(Equal([]idgen.ID{priority.ID, regular.ID}))

			e.Step(1000)

			f, _ := e.Patient(first.ID)
			r, _ := e.Patient(regular.ID)
			p, _ := e.Patient(priority.ID)

			Expect(*p.ServiceStart).To(Equal(*f.ServiceEnd))
			Expect(*r.ServiceStart).To(Equal(*p.ServiceEnd))
			Expect(e.Snapshot().PriorityPatients).To(BeEmpty())
		})

		It("should mark every patient priority when p is 1", func() {
			e = newEngine(params(6, 4, 2), 2)
			e.SetPriorityProbability(1)
			e.Start()
			e.Step(5)

			s := e.Snapshot()
			Expect(s.ArrivedCount).To(BeNumerically(">", 0))
			for id := idgen.ID(1); id <= idgen.ID(s.ArrivedCount); id++ {
				p, _ := e.Patient(id)
				Expect(p.Priority).To(BeTrue())
			}
		})

		It("should never serve anybody when mu is not positive", func() {
			e = newEngine(params(6, 0, 2), 4)
			e.Start()
			e.Step(5)

			s := e.Snapshot()
			Expect(s.ArrivedCount).To(BeNumerically(">", 0))
			Expect(s.ServedCount).To(BeZero())
			Expect(s.Queue).To(HaveLen(s.ArrivedCount))
			for _, slot := range s.InService {
				Expect(slot.Patient).To(BeNil())
			}
			Expect(s.Metrics.Empirical.Rho).To(BeNil())
			Expect(s.Metrics.Theoretical).To(Equal(erlang.Metrics{}))
		})

		It("should queue every arrival when there are no servers", func() {
			e = newEngine(params(6, 4, 0), 4)
			e.Start()
			e.Step(5)

			s := e.Snapshot()
			Expect(s.InService).To(BeEmpty())
			Expect(s.Queue).To(HaveLen(s.ArrivedCount))
			Expect(*s.Metrics.Empirical.L).To(Equal(*s.Metrics.Empirical.Lq))

			e.Pause()
			e.Resume()
			Expect(e.IsRunning()).To(BeTrue())
		})

		It("should stop arrivals when lambda is zero", func() {
			e = newEngine(params(0, 4, 2), 4)
			e.Start()
			e.Step(100)

			Expect(e.Snapshot().ArrivedCount).To(BeZero())
			Expect(e.sim.Pending()).To(BeZero())
		})

		It("should fix the slot count at start", func() {
			e.Start()
			e.SetParams(6, 4, 5)

			s := e.Snapshot()
			Expect(s.InService).To(HaveLen(2))
			Expect(*s.Metrics.Empirical.Rho).To(Equal(0.3))
			Expect(*s.Metrics.Theoretical.Rho).To(Equal(0.3))

			e.Start()
			Expect(e.Snapshot().InService).To(HaveLen(5))
		})
	})

	Context("statistics", func() {
		It("should keep L above Lq", func() {
			e.SetPriorityProbability(0.2)
			e.Start()

			for i := 0; i < 100; i++ {
				e.Step(0.5)

				s := e.Snapshot()
				Expect(*s.Metrics.Empirical.L).To(
					BeNumerically(">=", *s.Metrics.Empirical.Lq))
				Expect(e.stats.systemIntegral - e.stats.queueIntegral).To(
					BeNumerically(">=", 0))
			}
		})

		It("should approach the closed form on a long run", func() {
			e.Start()
			e.Step(4000)

			s := e.Snapshot()
			busy := (e.stats.systemIntegral - e.stats.queueIntegral) / s.SimTime
			Expect(busy).To(BeNumerically("~", 1.5, 0.075))

			theory := s.Metrics.Theoretical
			Expect(*s.Metrics.Empirical.L).To(BeNumerically("~", *theory.L, 0.15*(*theory.L)))
			Expect(*s.Metrics.Empirical.W).To(BeNumerically("~", *theory.W, 0.15*(*theory.W)))
		})

		It("should report the closed form for the current parameters", func() {
			e.Start()
			e.Step(1)
			e.SetParams(5, 3, 3)

			Expect(e.Snapshot().Metrics.Theoretical).To(Equal(erlang.C(5, 3, 3)))
		})
	})

	Context("reproducibility", func() {
		It("should give identical runs for the same seed", func() {
			e1 := newEngine(DefaultParams(), 42)
			e2 := newEngine(DefaultParams(), 42)
			e1.SetPriorityProbability(0.4)
			e2.SetPriorityProbability(0.4)
			e1.Start()
			e2.Start()

			for i := 0; i < 50; i++ {
				e1.Step(0.2)
				e2.Step(0.2)
			}

			Expect(e1.Snapshot()).To(Equal(e2.Snapshot()))
		})

		It("should repeat the run on restart", func() {
			e.Start()
			e.Step(7)
			first := e.Snapshot()

			e.Start()
			Expect(e.Snapshot().ArrivedCount).To(BeZero())
			e.Step(7)

			Expect(e.Snapshot()).To(Equal(first))
		})

		It("should apply a new seed at the next start", func() {
			e.Start()
			e.Step(7)
			first := e.Snapshot()

			e.SetSeed(77)
			Expect(e.Seed()).To(Equal(uint64(77)))
			e.Start()
			e.Step(7)

			Expect(e.Snapshot()).NotTo(Equal(first))
		})

		It("should not depend on how time is split into steps", func() {
			whole := newEngine(DefaultParams(), 8)
			split := newEngine(DefaultParams(), 8)
			whole.SetPriorityProbability(0.3)
			split.SetPriorityProbability(0.3)
			whole.Start()
			split.Start()

			whole.Step(5)
			for i := 0; i < 40; i++ {
				split.Step(0.125)
			}

			ws := whole.Snapshot()
			ss := split.Snapshot()

			Expect(ss.SimTime).To(Equal(ws.SimTime))
			Expect(ss.ArrivedCount).To(Equal(ws.ArrivedCount))
			Expect(ss.ServedCount).To(Equal(ws.ServedCount))
			Expect(ss.Queue).To(Equal(ws.Queue))
			Expect(ss.InService).To(Equal(ws.InService))

			for id := idgen.ID(1); id <= idgen.ID(ws.ArrivedCount); id++ {
				wp, _ := whole.Patient(id)
				sp, _ := split.Patient(id)
				Expect(sp).To(Equal(wp))
			}

			Expect(*ss.Metrics.Empirical.Lq).To(
				BeNumerically("~", *ws.Metrics.Empirical.Lq, 1e-9))
			Expect(*ss.Metrics.Empirical.L).To(
				BeNumerically("~", *ws.Metrics.Empirical.L, 1e-9))
		})

		It("should restart patient ids at every start", func() {
			e.Start()
			e.Step(3)
			Expect(e.Snapshot().ArrivedCount).To(BeNumerically(">", 0))

			e.Start()
			_, ok := e.Patient(1)
			Expect(ok).To(BeFalse())
		})
	})

	Context("hooks", func() {
		var mockCtrl *gomock.Controller

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should report every lifecycle change", func() {
			hook := NewMockHook(mockCtrl)
			counts := make(map[*hooking.HookPos]int)

			hook.EXPECT().Func(gomock.Any()).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Domain).To(BeIdenticalTo(e))
					counts[ctx.Pos]++

					switch ctx.Pos {
					case HookPosArrival:
						Expect(ctx.Item).To(BeAssignableToTypeOf(Patient{}))
					case HookPosServiceStart, HookPosDeparture:
						Expect(ctx.Detail).To(BeAssignableToTypeOf(0))
					case HookPosStep:
						Expect(ctx.Item).To(BeAssignableToTypeOf(Snapshot{}))
					}
				}).
				AnyTimes()

			e.AcceptHook(hook)
			e.Start()
			e.Step(10)
			e.Pause()
			e.Step(10)

			s := e.Snapshot()
			busy := 0
			for _, slot := range s.InService {
				if slot.Patient != nil {
					busy++
				}
			}

			Expect(counts[HookPosArrival]).To(Equal(s.ArrivedCount))
			Expect(counts[HookPosDeparture]).To(Equal(s.ServedCount))
			Expect(counts[HookPosServiceStart]).To(Equal(s.ServedCount + busy))
			Expect(counts[HookPosStep]).To(Equal(1))
		})

		It("should log the patient lifecycle", func() {
			logger, logs := test.NewNullLogger()
			logger.SetLevel(logrus.DebugLevel)

			e.AcceptHook(NewPatientLogger(logger))
			e.Start()
			e.Step(2)

			messages := make(map[string]int)
			for _, entry := range logs.AllEntries() {
				messages[entry.Message]++
				Expect(entry.Data).To(HaveKey("patient"))
				Expect(entry.Data).To(HaveKey("time"))
			}

			s := e.Snapshot()
			Expect(messages["arrival"]).To(Equal(s.ArrivedCount))
			Expect(messages["departure"]).To(Equal(s.ServedCount))
		})

		It("should pass scheduler hooks through", func() {
			logger, logs := test.NewNullLogger()
			logger.SetLevel(logrus.DebugLevel)

			e.AcceptEventHook(timing.NewEventLogger(logger))
			e.Start()
			e.Step(2)

			s := e.Snapshot()
			Expect(logs.AllEntries()).To(HaveLen(s.ArrivedCount + s.ServedCount))
		})
	})
})
