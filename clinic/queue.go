package clinic

import "github.com/sarchlab/clinicsim/idgen"

// patientQueue is a FIFO of waiting patient ids. Queue position, not id or
// arrival time, decides who is served next.
type patientQueue struct {
	ids  []idgen.ID
	head int
}

func (q *patientQueue) Push(id idgen.ID) {
	q.ids = append(q.ids, id)
}

func (q *patientQueue) Peek() (idgen.ID, bool) {
	if q.Len() == 0 {
		return 0, false
	}

	return q.ids[q.head], true
}

func (q *patientQueue) Pop() (idgen.ID, bool) {
	id, ok := q.Peek()
	if !ok {
		return 0, false
	}

	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head > 64 && q.head*2 > len(q.ids) {
		q.ids = append(q.ids[:0], q.ids[q.head:]...)
		q.head = 0
	}

	return id, true
}

func (q *patientQueue) Len() int {
	return len(q.ids) - q.head
}

// AppendTo appends the waiting ids in queue order to dst.
func (q *patientQueue) AppendTo(dst []idgen.ID) []idgen.ID {
	return append(dst, q.ids[q.head:]...)
}

func (q *patientQueue) Clear() {
	q.ids = q.ids[:0]
	q.head = 0
}
