package scheduler

import (
	"fmt"

	"seekplan/internal/algot"
	"seekplan/internal/blk"
	"seekplan/internal/config"
	"seekplan/internal/logging"
	"seekplan/internal/observability"

	"github.com/sirupsen/logrus"
)

// AlgotScheduler plans a bounded window with the interval cost matrix and
// dispatches from either end of it.
type AlgotScheduler struct {
	name            string
	version         string
	schedulerLogger logrus.FieldLogger
	core            *algot.Scheduler
}

func NewAlgotScheduler(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (*AlgotScheduler, error) {
	logger := logging.GetSchedulerLogger().WithField("policy", "algot")
	core, err := algot.New(algot.Config{
		Capacity:       cfg.Capacity,
		DirtyThreshold: cfg.DirtyThreshold,
		StartPos:       blk.Sector(cfg.StartSector),
		Logger:         logger,
		Observer:       obs,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize algot scheduler: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"capacity":        core.Capacity(),
		"dirty_threshold": core.DirtyThreshold(),
		"start_sector":    cfg.StartSector,
	}).Info("Algot scheduler initialized")

	return &AlgotScheduler{
		name:            "algot",
		version:         "1.0.0",
		schedulerLogger: logger,
		core:            core,
	}, nil
}

func (as *AlgotScheduler) Name() string       { return as.name }
func (as *AlgotScheduler) GetVersion() string { return as.version }

func (as *AlgotScheduler) Add(req *blk.Request) {
	as.core.Admit(req)
}

func (as *AlgotScheduler) Merged(survivor, absorbed *blk.Request) {
	as.core.NotifyMerged(survivor, absorbed)
}

func (as *AlgotScheduler) Dispatch() (*blk.Request, bool) {
	head := as.core.Stats().Arm
	req, ok := as.core.DispatchNext()
	if ok {
		as.schedulerLogger.WithFields(requestLogFields(req, head)).Trace("Dispatched request")
	}
	return req, ok
}

func (as *AlgotScheduler) Former(req *blk.Request) *blk.Request {
	prev, _ := as.core.PeekNeighbors(req)
	return prev
}

func (as *AlgotScheduler) Latter(req *blk.Request) *blk.Request {
	_, next := as.core.PeekNeighbors(req)
	return next
}

func (as *AlgotScheduler) Pending() int {
	return as.core.Pending()
}

func (as *AlgotScheduler) Stats() algot.Stats {
	return as.core.Stats()
}

func (as *AlgotScheduler) PlanStats() PlanStats {
	st := as.core.Stats()
	return PlanStats{Plans: st.Plans, ForcedPlans: st.ForcedPlans}
}

func (as *AlgotScheduler) Shutdown() error {
	st := as.core.Stats()
	if err := as.core.Close(); err != nil {
		return err
	}
	as.schedulerLogger.WithFields(logrus.Fields{
		"admitted":   st.Admitted,
		"dispatched": st.Dispatched,
		"merged":     st.Merged,
		"plans":      st.Plans,
		"forced":     st.ForcedPlans,
		"seek_total": st.SeekDistance,
	}).Info("Algot scheduler shut down")
	return nil
}
