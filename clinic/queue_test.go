package clinic

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/timing"
)

var _ = Describe("patientQueue", func() {
	var q *patientQueue

	BeforeEach(func() {
		q = &patientQueue{}
	})

	It("should be empty", func() {
		_, ok := q.Pop()
		Expect(ok).To(BeFalse())
		_, ok = q.Peek()
		Expect(ok).To(BeFalse())
		Expect(q.Len()).To(Equal(0))
	})

	It("should pop in push order across compactions", func() {
		next := idgen.ID(1)
		for i := 0; i < 1000; i++ {
			q.Push(idgen.ID(2*i + 1))
			q.Push(idgen.ID(2*i + 2))

			id, ok := q.Pop()
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(next))
			next++
		}

		Expect(q.Len()).To(Equal(1000))
		ids := q.AppendTo(nil)
		Expect(ids[0]).To(Equal(next))
		Expect(ids[len(ids)-1]).To(Equal(idgen.ID(2000)))
	})

	It("should clear", func() {
		q.Push(1)
		q.Clear()
		Expect(q.Len()).To(Equal(0))
	})
})

var _ = Describe("Patient", func() {
	It("should move through its states", func() {
		p := Patient{ID: 1, ArrivalTime: 1, Server: -1}
		Expect(p.State()).To(Equal(Waiting))
		_, ok := p.WaitTime()
		Expect(ok).To(BeFalse())

		p.ServiceStart = stamp(1.5)
		p.Server = 0
		Expect(p.State()).To(Equal(InService))
		wait, _ := p.WaitTime()
		Expect(wait).To(Equal(0.5))

		p.ServiceEnd = stamp(timing.VTimeInHour(3))
		Expect(p.State()).To(Equal(Departed))
		Expect(p.State().String()).To(Equal("departed"))
		system, ok := p.SystemTime()
		Expect(ok).To(BeTrue())
		Expect(system).To(Equal(2.0))
	})
})
