// Package algot implements a seek-minimising dispatch scheduler for a single
// block device. A bounded window of pending requests is planned with an
// interval dynamic program over C-SCAN order, and the plan is only rebuilt
// after enough new requests have been admitted. Requests beyond the window
// capacity wait in an overflow FIFO.
//
// A Scheduler is not safe for concurrent use. The owning queue serialises
// every call.
package algot

import (
	"container/list"
	"fmt"
	"time"

	"seekplan/internal/blk"
	"seekplan/internal/logging"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultCapacity is the number of requests planned at once.
	DefaultCapacity = 128
	// DefaultDirtyThreshold is how many admissions make a plan stale.
	DefaultDirtyThreshold = 8
	// MaxCapacity bounds the cost matrix at MaxCapacity² cells.
	MaxCapacity = 1024
)

// Observer receives planner and dispatcher events. All methods must be cheap.
type Observer interface {
	ObservePlan(size int, took time.Duration)
	ObserveDispatch(seek uint64)
	ObserveMerge()
	SetQueueDepth(window, overflow int)
}

type nopObserver struct{}

func (nopObserver) ObservePlan(int, time.Duration) {}
func (nopObserver) ObserveDispatch(uint64)         {}
func (nopObserver) ObserveMerge()                  {}
func (nopObserver) SetQueueDepth(int, int)         {}

// Config sets up a Scheduler. The zero value selects the defaults.
type Config struct {
	// Capacity is the window size C. Zero selects DefaultCapacity.
	Capacity int
	// DirtyThreshold is the number of admissions after which the plan is
	// rebuilt on the next dispatch. Zero selects DefaultDirtyThreshold.
	DirtyThreshold int
	// StartPos is the initial arm position.
	StartPos blk.Sector

	Logger   logrus.FieldLogger
	Observer Observer
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Admitted     uint64
	Dispatched   uint64
	Merged       uint64
	Plans        uint64
	ForcedPlans  uint64
	SeekDistance uint64

	Window   int
	Overflow int
	Dirty    int
	Arm      blk.Sector
}

// Scheduler orders the pending requests of one device.
type Scheduler struct {
	capacity  int
	threshold int

	sorted *list.List // window, ascending address
	wait   *list.List // overflow, FIFO

	slots  []slot
	matrix []uint64
	width  int
	start  int
	end    int

	arm   blk.Sector
	dirty int

	stats    Stats
	closed   bool
	logger   logrus.FieldLogger
	observer Observer
}

// New validates cfg and allocates the window and cost matrix once. All sizes
// are checked before anything is allocated.
func New(cfg Config) (*Scheduler, error) {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity %d must be positive", ErrInvalidConfig, capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrAllocation, capacity, MaxCapacity)
	}
	threshold := cfg.DirtyThreshold
	if threshold == 0 {
		threshold = DefaultDirtyThreshold
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: dirty threshold %d must be positive", ErrInvalidConfig, threshold)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetSchedulerLogger()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Scheduler{
		capacity:  capacity,
		threshold: threshold,
		sorted:    list.New(),
		wait:      list.New(),
		slots:     make([]slot, capacity),
		matrix:    make([]uint64, capacity*capacity),
		start:     0,
		end:       -1,
		arm:       cfg.StartPos,
		dirty:     threshold - 1,
		logger:    logger,
		observer:  observer,
	}, nil
}

func (s *Scheduler) Capacity() int       { return s.capacity }
func (s *Scheduler) DirtyThreshold() int { return s.threshold }

// Pending returns the number of queued requests in the window and overflow.
func (s *Scheduler) Pending() int {
	return s.sorted.Len() + s.wait.Len()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Window = s.sorted.Len()
	st.Overflow = s.wait.Len()
	st.Dirty = s.dirty
	st.Arm = s.arm
	return st
}

func (s *Scheduler) mustBeOpen() {
	if s.closed {
		panic(ErrClosed)
	}
}

// Admit queues req. Any overflow backlog is moved into the window first, then
// req goes into the window if there is room or to the overflow tail if not.
func (s *Scheduler) Admit(req *blk.Request) {
	s.mustBeOpen()
	if _, queued := s.nodeOf(req); queued {
		err := &ConsistencyError{Op: "admit", Detail: fmt.Sprintf("%s is already queued", req)}
		s.logger.WithFields(requestLogFields(req)).WithError(err).Error("Request admitted twice")
		panic(err)
	}

	s.drainOverflow()
	n := s.newNode(req)
	if s.wait.Len() == 0 && s.sorted.Len() < s.capacity {
		s.sortIn(n)
	} else {
		s.enqueueOverflow(n)
	}
	s.stats.Admitted++
	s.observer.SetQueueDepth(s.sorted.Len(), s.wait.Len())
}

// NotifyMerged tells the scheduler that the host folded absorbed into
// survivor. absorbed is dropped from the scheduler. A planned slot is only
// marked merged; the cost matrix is not rebuilt. Unknown requests are ignored.
func (s *Scheduler) NotifyMerged(survivor, absorbed *blk.Request) {
	s.mustBeOpen()
	n, ok := s.nodeOf(absorbed)
	if !ok {
		return
	}
	if n.tag >= 0 {
		if n.tag >= s.width || s.slots[n.tag].req != absorbed {
			err := &ConsistencyError{
				Op:     "merge",
				Detail: fmt.Sprintf("%s claims slot %d it does not hold", absorbed, n.tag),
			}
			s.logger.WithFields(requestLogFields(absorbed)).WithError(err).Error("Merge found a stale slot tag")
			panic(err)
		}
		s.slots[n.tag] = slot{kind: slotMerged}
	}
	s.unlink(n)

	s.stats.Merged++
	s.observer.ObserveMerge()
	s.observer.SetQueueDepth(s.sorted.Len(), s.wait.Len())
	s.logger.WithFields(requestLogFields(absorbed)).
		WithField("survivor", survivor.String()).
		Trace("Request merged away")
}

// DispatchNext removes and returns the next request to send to the device.
// It returns false when nothing is queued.
func (s *Scheduler) DispatchNext() (*blk.Request, bool) {
	s.mustBeOpen()
	if s.Pending() == 0 {
		return nil, false
	}
	if s.dirty >= s.threshold {
		s.plan(false)
	}

	from := s.arm
	req := s.pickNext()
	if req == nil {
		return nil, false
	}
	s.arm = req.Pos

	seek := blk.Distance(from, req.Pos)
	s.stats.Dispatched++
	s.stats.SeekDistance += seek
	s.observer.ObserveDispatch(seek)
	s.observer.SetQueueDepth(s.sorted.Len(), s.wait.Len())
	return req, true
}

// PeekNeighbors returns the requests queued immediately before and after req
// in its current list: address order inside the window, arrival order in the
// overflow queue. Either is nil at a boundary or when req is not queued.
func (s *Scheduler) PeekNeighbors(req *blk.Request) (prev, next *blk.Request) {
	s.mustBeOpen()
	n, ok := s.nodeOf(req)
	if !ok {
		return nil, nil
	}
	if e := n.elem.Prev(); e != nil {
		prev = e.Value.(*node).req
	}
	if e := n.elem.Next(); e != nil {
		next = e.Value.(*node).req
	}
	return prev, next
}

// Close releases the window and matrix. It fails, and keeps the scheduler
// usable, if any request is still queued.
func (s *Scheduler) Close() error {
	s.mustBeOpen()
	if s.Pending() != 0 {
		err := &ConsistencyError{
			Op:     "close",
			Detail: fmt.Sprintf("%d window and %d overflow requests outstanding", s.sorted.Len(), s.wait.Len()),
		}
		s.logger.WithError(err).Error("Scheduler closed with queued requests")
		return err
	}
	s.slots = nil
	s.matrix = nil
	s.width = 0
	s.closed = true
	return nil
}

func requestLogFields(req *blk.Request) logrus.Fields {
	if req == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{
		"request_id": req.ID,
		"sector":     req.Pos,
		"sectors":    req.Sectors,
		"dir":        req.Dir(),
	}
}
