package scheduler

import (
	"container/list"
	"fmt"

	"seekplan/internal/blk"
	"seekplan/internal/logging"
	"seekplan/internal/observability"

	"github.com/sirupsen/logrus"
)

// NoopScheduler dispatches in arrival order.
type NoopScheduler struct {
	name            string
	version         string
	schedulerLogger logrus.FieldLogger
	obs             *observability.PolicyObserver

	fifo  *list.List
	index map[*blk.Request]*list.Element
	head  blk.Sector
}

func NewNoopScheduler(obs *observability.PolicyObserver) *NoopScheduler {
	return &NoopScheduler{
		name:            "noop",
		version:         "1.0.0",
		schedulerLogger: logging.GetSchedulerLogger().WithField("policy", "noop"),
		obs:             obs,
		fifo:            list.New(),
		index:           make(map[*blk.Request]*list.Element),
	}
}

func (ns *NoopScheduler) Name() string       { return ns.name }
func (ns *NoopScheduler) GetVersion() string { return ns.version }

func (ns *NoopScheduler) Add(req *blk.Request) {
	ns.index[req] = ns.fifo.PushBack(req)
	ns.obs.SetQueueDepth(ns.fifo.Len(), 0)
}

func (ns *NoopScheduler) Merged(_, absorbed *blk.Request) {
	e, ok := ns.index[absorbed]
	if !ok {
		return
	}
	ns.fifo.Remove(e)
	delete(ns.index, absorbed)
	ns.obs.ObserveMerge()
	ns.obs.SetQueueDepth(ns.fifo.Len(), 0)
}

func (ns *NoopScheduler) Dispatch() (*blk.Request, bool) {
	front := ns.fifo.Front()
	if front == nil {
		return nil, false
	}
	req := ns.fifo.Remove(front).(*blk.Request)
	delete(ns.index, req)

	ns.schedulerLogger.WithFields(requestLogFields(req, ns.head)).Trace("Dispatched request")
	ns.obs.ObserveDispatch(blk.Distance(ns.head, req.Pos))
	ns.obs.SetQueueDepth(ns.fifo.Len(), 0)
	ns.head = req.Pos
	return req, true
}

func (ns *NoopScheduler) Former(req *blk.Request) *blk.Request {
	if e, ok := ns.index[req]; ok && e.Prev() != nil {
		return e.Prev().Value.(*blk.Request)
	}
	return nil
}

func (ns *NoopScheduler) Latter(req *blk.Request) *blk.Request {
	if e, ok := ns.index[req]; ok && e.Next() != nil {
		return e.Next().Value.(*blk.Request)
	}
	return nil
}

func (ns *NoopScheduler) Pending() int { return ns.fifo.Len() }

func (ns *NoopScheduler) Shutdown() error {
	if n := ns.fifo.Len(); n != 0 {
		return fmt.Errorf("noop scheduler shut down with %d queued requests", n)
	}
	return nil
}
