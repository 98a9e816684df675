package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/clinicsim/hooking"
)

var _ = Describe("EventLogger", func() {
	It("should log events before they are handled", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		h := NewEventLogger(logger)

		evt := &ScheduledEvent{Event: &labeledEvent{"x"}, Time: 1.5}
		h.Func(hooking.HookCtx{Pos: HookPosBeforeEvent, Item: evt})
		h.Func(hooking.HookCtx{Pos: HookPosAfterEvent, Item: evt})

		Expect(logs.AllEntries()).To(HaveLen(1))
		entry := logs.LastEntry()
		Expect(entry.Level).To(Equal(logrus.DebugLevel))
		Expect(entry.Data["time"]).To(Equal(1.5))
		Expect(entry.Data["event"]).To(Equal("*timing.labeledEvent"))
	})

	It("should honour a custom level", func() {
		logger, logs := test.NewNullLogger()
		h := NewEventLogger(logger).WithLevel(logrus.InfoLevel)

		h.Func(hooking.HookCtx{
			Pos:  HookPosBeforeEvent,
			Item: &ScheduledEvent{Event: 1, Time: 0},
		})

		Expect(logs.LastEntry().Level).To(Equal(logrus.InfoLevel))
	})
})
