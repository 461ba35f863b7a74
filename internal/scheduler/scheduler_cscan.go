package scheduler

import (
	"fmt"

	"seekplan/internal/blk"
	"seekplan/internal/logging"
	"seekplan/internal/observability"

	"github.com/sirupsen/logrus"
)

// CScanScheduler sweeps upwards from the head and wraps to the lowest queued
// sector when nothing is left above it.
type CScanScheduler struct {
	name            string
	version         string
	schedulerLogger logrus.FieldLogger
	obs             *observability.PolicyObserver

	queue *sortedQueue
	head  blk.Sector
	wraps int
}

func NewCScanScheduler(start blk.Sector, obs *observability.PolicyObserver) *CScanScheduler {
	return &CScanScheduler{
		name:            "cscan",
		version:         "1.0.0",
		schedulerLogger: logging.GetSchedulerLogger().WithField("policy", "cscan"),
		obs:             obs,
		queue:           newSortedQueue(),
		head:            start,
	}
}

func (cs *CScanScheduler) Name() string       { return cs.name }
func (cs *CScanScheduler) GetVersion() string { return cs.version }

func (cs *CScanScheduler) Add(req *blk.Request) {
	cs.queue.add(req)
	cs.obs.SetQueueDepth(cs.queue.len(), 0)
}

func (cs *CScanScheduler) Merged(_, absorbed *blk.Request) {
	if absorbed == nil || !cs.queue.contains(absorbed) {
		return
	}
	cs.queue.remove(absorbed)
	cs.obs.ObserveMerge()
	cs.obs.SetQueueDepth(cs.queue.len(), 0)
}

func (cs *CScanScheduler) Dispatch() (*blk.Request, bool) {
	req := cs.queue.ceil(cs.head)
	if req == nil {
		req = cs.queue.first()
		if req == nil {
			return nil, false
		}
		cs.wraps++
		cs.schedulerLogger.WithField("wraps", cs.wraps).Trace("Sweep wrapped to the lowest sector")
	}
	cs.queue.remove(req)

	cs.schedulerLogger.WithFields(requestLogFields(req, cs.head)).Trace("Dispatched request")
	cs.obs.ObserveDispatch(blk.Distance(cs.head, req.Pos))
	cs.obs.SetQueueDepth(cs.queue.len(), 0)
	cs.head = req.Pos
	return req, true
}

func (cs *CScanScheduler) Former(req *blk.Request) *blk.Request { return cs.queue.prev(req) }
func (cs *CScanScheduler) Latter(req *blk.Request) *blk.Request { return cs.queue.next(req) }
func (cs *CScanScheduler) Pending() int                         { return cs.queue.len() }

func (cs *CScanScheduler) Shutdown() error {
	if n := cs.queue.len(); n != 0 {
		return fmt.Errorf("cscan scheduler shut down with %d queued requests", n)
	}
	return nil
}
