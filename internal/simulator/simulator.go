// Package simulator replays a request trace against a scheduling policy on a
// simple seek/transfer disk model. It plays the block layer's part: it admits
// requests as they arrive, merges contiguous ones using the scheduler's
// neighbour lookups, and issues one request whenever the device is idle.
package simulator

import (
	"container/list"
	"context"
	"fmt"
	"time"

	"seekplan/internal/blk"
	"seekplan/internal/config"
	"seekplan/internal/logging"
	"seekplan/internal/scheduler"

	"github.com/sirupsen/logrus"
)

type Simulator struct {
	device config.DeviceConfig
	host   config.HostConfig
	sched  scheduler.Scheduler
	logger logrus.FieldLogger

	head    blk.Sector
	riders  map[*blk.Request][]*blk.Request
	backlog *list.List
	report  *Report
}

func New(sim config.SimulationInfo, sched scheduler.Scheduler) *Simulator {
	return &Simulator{
		device: sim.Device,
		host:   sim.Host,
		sched:  sched,
		logger: logging.GetLogger().WithField("policy", sched.Name()),
		head:   blk.Sector(sim.Scheduler.StartSector),
	}
}

// Run replays trace, which must be ordered by arrival, until every request
// has completed or ctx is cancelled. The scheduler is shut down afterwards.
func (s *Simulator) Run(ctx context.Context, trace []config.TraceRequest) (*Report, error) {
	s.riders = make(map[*blk.Request][]*blk.Request)
	s.backlog = list.New()
	s.report = &Report{
		Policy:           s.sched.Name(),
		SchedulerVersion: s.sched.GetVersion(),
		Requests:         len(trace),
	}

	s.logger.WithFields(logrus.Fields{
		"requests":    len(trace),
		"queue_depth": s.host.QueueDepth,
		"merge":       s.host.Merge,
	}).Info("Starting simulation")

	var now time.Duration
	next := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logger.WithError(err).Warn("Simulation cancelled")
			return nil, err
		}

		for next < len(trace) && trace[next].Arrival() <= now {
			tr := trace[next]
			next++
			s.backlog.PushBack(&blk.Request{
				ID:      uint64(next),
				Pos:     blk.Sector(tr.Sector),
				Sectors: tr.Sectors,
				Write:   tr.Write,
				Arrival: tr.Arrival(),
			})
		}
		s.admitBacklog()

		if s.sched.Pending() == 0 {
			if next >= len(trace) {
				break
			}
			// Idle until the next arrival.
			if at := trace[next].Arrival(); at > now {
				now = at
			}
			continue
		}

		req, ok := s.sched.Dispatch()
		if !ok {
			return nil, fmt.Errorf("%s reported %d pending requests but dispatched none", s.sched.Name(), s.sched.Pending())
		}
		now = s.service(req, now)
	}

	if s.backlog.Len() != 0 {
		return nil, fmt.Errorf("simulation ended with %d requests in the host backlog", s.backlog.Len())
	}
	if err := s.sched.Shutdown(); err != nil {
		return nil, fmt.Errorf("shutdown %s: %w", s.sched.Name(), err)
	}
	if p, ok := s.sched.(scheduler.Planner); ok {
		ps := p.PlanStats()
		s.report.Plans = ps.Plans
		s.report.ForcedPlans = ps.ForcedPlans
	}
	s.report.Makespan = now
	s.report.finish()

	s.logger.WithFields(logrus.Fields{
		"dispatched": s.report.Dispatched,
		"merged":     s.report.Merged,
		"seek_total": s.report.TotalSeek,
		"makespan":   s.report.Makespan,
	}).Info("Simulation finished")
	return s.report, nil
}

// admitBacklog hands waiting requests to the scheduler while the queue depth
// allows it.
func (s *Simulator) admitBacklog() {
	for s.backlog.Len() > 0 {
		if s.host.QueueDepth > 0 && s.sched.Pending() >= s.host.QueueDepth {
			return
		}
		req := s.backlog.Remove(s.backlog.Front()).(*blk.Request)
		s.admit(req)
	}
}

func (s *Simulator) admit(req *blk.Request) {
	s.sched.Add(req)
	if !s.host.Merge {
		return
	}

	if prev := s.sched.Former(req); s.canMerge(prev, req) {
		s.merge(prev, req)
		s.report.BackMerges++
		req = prev
	}
	if next := s.sched.Latter(req); s.canMerge(req, next) {
		s.merge(req, next)
		s.report.FrontMerges++
	}
}

// canMerge reports whether b continues a on disk and the result stays within
// the merge limit.
func (s *Simulator) canMerge(a, b *blk.Request) bool {
	if a == nil || b == nil || a.Write != b.Write {
		return false
	}
	if a.End() != b.Pos {
		return false
	}
	return a.Sectors+b.Sectors <= s.host.MaxMergeSectors
}

func (s *Simulator) merge(survivor, absorbed *blk.Request) {
	survivor.Sectors += absorbed.Sectors
	s.sched.Merged(survivor, absorbed)

	riders := append(s.riders[survivor], absorbed)
	riders = append(riders, s.riders[absorbed]...)
	delete(s.riders, absorbed)
	s.riders[survivor] = riders
	s.report.Merged++

	s.logger.WithFields(logrus.Fields{
		"survivor": survivor.ID,
		"absorbed": absorbed.ID,
		"sector":   survivor.Pos,
		"sectors":  survivor.Sectors,
	}).Trace("Merged contiguous requests")
}

// service issues req at now and returns the time the device becomes idle.
// The head ends up just past the transferred range.
func (s *Simulator) service(req *blk.Request, now time.Duration) time.Duration {
	seek := blk.Distance(s.head, req.Pos)
	done := now + s.device.SeekTime(seek) + s.device.TransferTime(req.Sectors)

	rec := Record{
		Seq:       s.report.Dispatched,
		RequestID: req.ID,
		Sector:    uint64(req.Pos),
		Sectors:   req.Sectors,
		Write:     req.Write,
		Seek:      seek,
		Issued:    now,
		Completed: done,
		Latency:   done - req.Arrival,
		Riders:    len(s.riders[req]),
	}
	s.report.add(rec)
	for _, rider := range s.riders[req] {
		s.report.observeLatency(done - rider.Arrival)
	}
	delete(s.riders, req)

	s.head = req.End()
	return done
}
