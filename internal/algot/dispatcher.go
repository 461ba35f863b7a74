package algot

import (
	"fmt"

	"seekplan/internal/blk"
)

// pickNext releases one planned request from either end of the live span.
// It returns nil only when nothing is queued at all.
func (s *Scheduler) pickNext() *blk.Request {
	replanned := false
	for {
		for s.start <= s.end && s.slots[s.start].kind == slotMerged {
			s.start++
		}
		for s.end >= s.start && s.slots[s.end].kind == slotMerged {
			s.end--
		}

		if s.start > s.end {
			// Every planned slot is gone but the window or overflow may
			// still hold requests admitted after the last plan.
			if replanned || s.Pending() == 0 {
				return nil
			}
			s.plan(true)
			replanned = true
			continue
		}

		// Both ends are past the merged runs, so they must be live.
		s.checkLive(s.start)
		s.checkLive(s.end)

		var i int
		if s.start != s.end {
			span := uint64(s.end - s.start + 1)
			near := span*blk.Distance(s.arm, s.slots[s.start].req.Pos) + s.cost(s.start, s.end)
			far := span*blk.Distance(s.arm, s.slots[s.end].req.Pos) + s.cost(s.end, s.start)
			if near <= far {
				i = s.start
				s.start++
			} else {
				i = s.end
				s.end--
			}
		} else {
			i = s.start
			s.start++
			// An exhausted plan is always stale.
			s.dirty = s.threshold
		}

		req := s.slots[i].req
		s.slots[i] = slot{kind: slotDispatched}

		n, ok := s.nodeOf(req)
		if !ok || n.tag != i {
			s.violation("dispatch", i, fmt.Sprintf("slot %d holds %s which is not tracked there", i, req))
		}
		s.unlink(n)
		return req
	}
}

// checkLive panics unless slot i still holds a planned request.
func (s *Scheduler) checkLive(i int) {
	if k := s.slots[i].kind; k != slotLive {
		s.violation("dispatch", i, fmt.Sprintf("slot %d selected while %s", i, k))
	}
}

func (s *Scheduler) violation(op string, slotIdx int, detail string) {
	err := &ConsistencyError{Op: op, Detail: detail}
	s.logger.WithField("slot", slotIdx).WithError(err).Error("Dispatch bookkeeping is corrupt")
	panic(err)
}
