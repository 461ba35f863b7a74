package algot

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned by New when the window and cost matrix
	// would exceed MaxCapacity. Sizes are checked before anything is
	// allocated.
	ErrAllocation = errors.New("algot: allocation failed")

	// ErrInvalidConfig is returned by New for out of range settings.
	ErrInvalidConfig = errors.New("algot: invalid config")

	// ErrClosed is the panic value for any call on a closed scheduler.
	ErrClosed = errors.New("algot: scheduler is closed")
)

// ConsistencyError reports corrupted scheduler bookkeeping. It is returned by
// Close when requests are still queued and used as the panic value when the
// dispatcher would hand out a slot twice.
type ConsistencyError struct {
	Op     string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("algot: consistency violation in %s: %s", e.Op, e.Detail)
}
