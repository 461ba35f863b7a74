package blk

import (
	"fmt"
	"time"
)

// Sector is a position on the device's linear address space.
type Sector uint64

// Distance returns |a - b|.
func Distance(a, b Sector) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

// Request is a pending I/O operation. The host owns it; schedulers only hold
// references while it is queued.
type Request struct {
	ID      uint64
	Pos     Sector
	Sectors uint32
	Write   bool

	// Arrival is the simulated time at which the request became eligible.
	Arrival time.Duration

	// Private belongs to the scheduler currently queueing the request.
	// Hosts must not read or modify it.
	Private any
}

// End returns the first sector after the request.
func (r *Request) End() Sector {
	return r.Pos + Sector(r.Sectors)
}

// Dir returns "write" or "read".
func (r *Request) Dir() string {
	if r.Write {
		return "write"
	}
	return "read"
}

func (r *Request) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("#%d %s %d+%d", r.ID, r.Dir(), r.Pos, r.Sectors)
}
