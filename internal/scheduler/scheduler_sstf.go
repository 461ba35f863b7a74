package scheduler

import (
	"fmt"

	"seekplan/internal/blk"
	"seekplan/internal/logging"
	"seekplan/internal/observability"

	"github.com/sirupsen/logrus"
)

// SSTFScheduler always dispatches the queued request closest to the head,
// preferring the forward one on a tie.
type SSTFScheduler struct {
	name            string
	version         string
	schedulerLogger logrus.FieldLogger
	obs             *observability.PolicyObserver

	queue *sortedQueue
	head  blk.Sector
}

func NewSSTFScheduler(start blk.Sector, obs *observability.PolicyObserver) *SSTFScheduler {
	return &SSTFScheduler{
		name:            "sstf",
		version:         "1.0.0",
		schedulerLogger: logging.GetSchedulerLogger().WithField("policy", "sstf"),
		obs:             obs,
		queue:           newSortedQueue(),
		head:            start,
	}
}

func (ss *SSTFScheduler) Name() string       { return ss.name }
func (ss *SSTFScheduler) GetVersion() string { return ss.version }

func (ss *SSTFScheduler) Add(req *blk.Request) {
	ss.queue.add(req)
	ss.obs.SetQueueDepth(ss.queue.len(), 0)
}

func (ss *SSTFScheduler) Merged(_, absorbed *blk.Request) {
	if absorbed == nil || !ss.queue.contains(absorbed) {
		return
	}
	ss.queue.remove(absorbed)
	ss.obs.ObserveMerge()
	ss.obs.SetQueueDepth(ss.queue.len(), 0)
}

func (ss *SSTFScheduler) Dispatch() (*blk.Request, bool) {
	up := ss.queue.ceil(ss.head)
	down := ss.queue.floor(ss.head)

	req := up
	if up == nil || (down != nil && blk.Distance(ss.head, down.Pos) < blk.Distance(ss.head, up.Pos)) {
		req = down
	}
	if req == nil {
		return nil, false
	}
	ss.queue.remove(req)

	ss.schedulerLogger.WithFields(requestLogFields(req, ss.head)).Trace("Dispatched request")
	ss.obs.ObserveDispatch(blk.Distance(ss.head, req.Pos))
	ss.obs.SetQueueDepth(ss.queue.len(), 0)
	ss.head = req.Pos
	return req, true
}

func (ss *SSTFScheduler) Former(req *blk.Request) *blk.Request { return ss.queue.prev(req) }
func (ss *SSTFScheduler) Latter(req *blk.Request) *blk.Request { return ss.queue.next(req) }
func (ss *SSTFScheduler) Pending() int                         { return ss.queue.len() }

func (ss *SSTFScheduler) Shutdown() error {
	if n := ss.queue.len(); n != 0 {
		return fmt.Errorf("sstf scheduler shut down with %d queued requests", n)
	}
	return nil
}
