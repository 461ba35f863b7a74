package algot

import (
	"time"

	"seekplan/internal/blk"

	"github.com/sirupsen/logrus"
)

// plan refills the window from the overflow queue, lays it out in C-SCAN
// order starting at the arm and rebuilds the cost matrix.
func (s *Scheduler) plan(forced bool) {
	began := time.Now()
	s.drainOverflow()

	idx := 0
	for e := s.sorted.Front(); e != nil; e = e.Next() {
		n := e.Value.(*node)
		if n.req.Pos > s.arm {
			s.place(idx, n)
			idx++
		}
	}
	for e := s.sorted.Front(); e != nil; e = e.Next() {
		n := e.Value.(*node)
		if n.req.Pos > s.arm {
			break
		}
		s.place(idx, n)
		idx++
	}
	for i := idx; i < len(s.slots); i++ {
		s.slots[i] = slot{}
	}

	s.width = idx
	s.fillMatrix()

	s.start = 0
	s.end = idx - 1
	s.dirty = 0
	s.stats.Plans++
	if forced {
		s.stats.ForcedPlans++
	}

	took := time.Since(began)
	s.observer.ObservePlan(idx, took)
	s.logger.WithFields(logrus.Fields{
		"plan_size": idx,
		"arm":       s.arm,
		"overflow":  s.wait.Len(),
		"forced":    forced,
		"took":      took,
	}).Debug("Rebuilt dispatch plan")
}

func (s *Scheduler) place(idx int, n *node) {
	n.tag = idx
	s.slots[idx] = slot{kind: slotLive, req: n.req}
}

// cost returns the matrix cell for the span [i, j] entered at i. The row
// width is the plan size, not the capacity.
func (s *Scheduler) cost(i, j int) uint64 {
	return s.matrix[i*s.width+j]
}

func (s *Scheduler) setCost(i, j int, v uint64) {
	s.matrix[i*s.width+j] = v
}

// dist is the seek distance between two planned slots. C-SCAN order is only
// ascending on each side of the wrap, so this is always an absolute
// difference and never assumes i < j implies a lower address.
func (s *Scheduler) dist(i, j int) uint64 {
	return blk.Distance(s.slots[i].req.Pos, s.slots[j].req.Pos)
}

// fillMatrix computes, for every contiguous span of planned slots, the
// minimum width-weighted cost of servicing it when entering at either end.
// Each step is weighted by the number of requests still waiting in the span,
// which favours clearing wide spans first.
func (s *Scheduler) fillMatrix() {
	ns := s.width
	for i := 0; i < ns; i++ {
		s.setCost(i, i, 0)
	}
	for k := 1; k < ns; k++ {
		w := uint64(k)
		for i := 0; i+k < ns; i++ {
			j := i + k

			left := w*s.dist(i, i+1) + s.cost(i+1, j)
			right := w*s.dist(i, j) + s.cost(j, i+1)
			s.setCost(i, j, min(left, right))

			left = w*s.dist(j, j-1) + s.cost(j-1, i)
			right = w*s.dist(i, j) + s.cost(i, j-1)
			s.setCost(j, i, min(left, right))
		}
	}
}
