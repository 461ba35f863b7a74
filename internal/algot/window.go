package algot

import (
	"container/list"

	"seekplan/internal/blk"
)

// Plan tags stored in a node. Non-negative values are slot indices.
const (
	tagUnsorted = -2 // waiting in the overflow queue
	tagSorted   = -1 // in the window list, no slot until the next plan
)

type slotKind uint8

const (
	slotEmpty slotKind = iota
	slotLive
	slotMerged
	slotDispatched
)

func (k slotKind) String() string {
	switch k {
	case slotLive:
		return "live"
	case slotMerged:
		return "merged"
	case slotDispatched:
		return "dispatched"
	default:
		return "empty"
	}
}

// slot is one cell of the planned window.
type slot struct {
	kind slotKind
	req  *blk.Request
}

// node is what the scheduler keeps in blk.Request.Private.
type node struct {
	owner *Scheduler
	req   *blk.Request
	tag   int
	elem  *list.Element
}

func (s *Scheduler) nodeOf(req *blk.Request) (*node, bool) {
	if req == nil {
		return nil, false
	}
	n, ok := req.Private.(*node)
	if !ok || n.owner != s || n.elem == nil {
		return nil, false
	}
	return n, true
}

func (s *Scheduler) newNode(req *blk.Request) *node {
	n := &node{owner: s, req: req}
	req.Private = n
	return n
}

// sortIn inserts n into the window list before the first entry with a
// strictly greater address, so equal addresses keep arrival order.
func (s *Scheduler) sortIn(n *node) {
	n.tag = tagSorted

	var at *list.Element
	for e := s.sorted.Front(); e != nil; e = e.Next() {
		if e.Value.(*node).req.Pos > n.req.Pos {
			at = e
			break
		}
	}
	if at != nil {
		n.elem = s.sorted.InsertBefore(n, at)
	} else {
		n.elem = s.sorted.PushBack(n)
	}
	s.dirty++
}

// enqueueOverflow appends n to the overflow FIFO.
func (s *Scheduler) enqueueOverflow(n *node) {
	n.tag = tagUnsorted
	n.elem = s.wait.PushBack(n)
}

// drainOverflow moves overflow entries into the window, oldest first, until
// the window is full or the overflow queue is empty.
func (s *Scheduler) drainOverflow() {
	for s.wait.Len() > 0 && s.sorted.Len() < s.capacity {
		front := s.wait.Front()
		n := s.wait.Remove(front).(*node)
		s.sortIn(n)
	}
}

// unlink removes n from whichever list holds it and forgets the request.
func (s *Scheduler) unlink(n *node) {
	if n.tag == tagUnsorted {
		s.wait.Remove(n.elem)
	} else {
		s.sorted.Remove(n.elem)
	}
	n.elem = nil
	n.req.Private = nil
}
