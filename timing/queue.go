package timing

import "container/heap"

// pendingEvent is a scheduled event plus the order in which it was
// scheduled. Events at the same time fire in scheduling order.
type pendingEvent struct {
	ScheduledEvent
	seq uint64
}

type eventQueue struct {
	events  pendingEventHeap
	nextSeq uint64
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.events = make([]*pendingEvent, 0)
	heap.Init(&q.events)

	return q
}

func (q *eventQueue) Push(evt ScheduledEvent) {
	heap.Push(&q.events, &pendingEvent{ScheduledEvent: evt, seq: q.nextSeq})
	q.nextSeq++
}

func (q *eventQueue) Pop() *pendingEvent {
	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*pendingEvent)
}

func (q *eventQueue) Peek() *pendingEvent {
	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

func (q *eventQueue) Len() int {
	return q.events.Len()
}

func (q *eventQueue) Clear() {
	q.events = q.events[:0]
	q.nextSeq = 0
}

type pendingEventHeap []*pendingEvent

func (h pendingEventHeap) Len() int { return len(h) }

func (h pendingEventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	return h[i].seq < h[j].seq
}

func (h pendingEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *pendingEventHeap) Push(x any) {
	*h = append(*h, x.(*pendingEvent))
}

func (h *pendingEventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
