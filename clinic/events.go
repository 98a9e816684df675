package clinic

import (
	"github.com/sarchlab/clinicsim/idgen"
	"github.com/sarchlab/clinicsim/timing"
)

// arrivalEvent brings the next patient in.
type arrivalEvent struct{}

// completionEvent ends the service of patient on server.
type completionEvent struct {
	server  int
	patient idgen.ID
}

// serverSlot is one server. A free slot has no meaningful completion time.
type serverSlot struct {
	busy        bool
	patient     idgen.ID
	completesAt timing.VTimeInHour
}
