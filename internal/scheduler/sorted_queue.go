package scheduler

import (
	"seekplan/internal/blk"

	"github.com/tidwall/btree"
)

// sortedQueue keeps queued requests ordered by (sector, id). Request IDs must
// be unique among queued requests.
type sortedQueue struct {
	tree *btree.BTreeG[*blk.Request]
}

func byPosition(a, b *blk.Request) bool {
	if a.Pos != b.Pos {
		return a.Pos < b.Pos
	}
	return a.ID < b.ID
}

func newSortedQueue() *sortedQueue {
	return &sortedQueue{tree: btree.NewBTreeG(byPosition)}
}

func (q *sortedQueue) add(req *blk.Request) { q.tree.Set(req) }

func (q *sortedQueue) remove(req *blk.Request) bool {
	_, ok := q.tree.Delete(req)
	return ok
}

func (q *sortedQueue) contains(req *blk.Request) bool {
	got, ok := q.tree.Get(req)
	return ok && got == req
}

func (q *sortedQueue) len() int { return q.tree.Len() }

// ceil returns the first request at or after pos.
func (q *sortedQueue) ceil(pos blk.Sector) *blk.Request {
	var found *blk.Request
	q.tree.Ascend(&blk.Request{Pos: pos}, func(item *blk.Request) bool {
		found = item
		return false
	})
	return found
}

// floor returns the last request strictly before pos.
func (q *sortedQueue) floor(pos blk.Sector) *blk.Request {
	pivot := &blk.Request{Pos: pos}
	var found *blk.Request
	q.tree.Descend(pivot, func(item *blk.Request) bool {
		if byPosition(item, pivot) {
			found = item
			return false
		}
		return true
	})
	return found
}

func (q *sortedQueue) first() *blk.Request {
	req, _ := q.tree.Min()
	return req
}

func (q *sortedQueue) prev(req *blk.Request) *blk.Request {
	if !q.contains(req) {
		return nil
	}
	var found *blk.Request
	q.tree.Descend(req, func(item *blk.Request) bool {
		if item == req {
			return true
		}
		found = item
		return false
	})
	return found
}

func (q *sortedQueue) next(req *blk.Request) *blk.Request {
	if !q.contains(req) {
		return nil
	}
	var found *blk.Request
	q.tree.Ascend(req, func(item *blk.Request) bool {
		if item == req {
			return true
		}
		found = item
		return false
	})
	return found
}
