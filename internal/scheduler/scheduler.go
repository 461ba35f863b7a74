package scheduler

import (
	"fmt"
	"sort"

	"seekplan/internal/blk"
	"seekplan/internal/config"
	"seekplan/internal/observability"
)

// Scheduler decides the order in which queued requests reach the device.
// Implementations are single-writer: the host serialises every call.
type Scheduler interface {
	Name() string
	GetVersion() string

	// Add queues a request that just became eligible.
	Add(req *blk.Request)
	// Merged drops absorbed after the host folded it into survivor.
	Merged(survivor, absorbed *blk.Request)
	// Dispatch removes the next request to issue, or returns false if the
	// scheduler is empty.
	Dispatch() (*blk.Request, bool)
	// Former and Latter return the queued neighbours of req in the
	// scheduler's internal order, or nil.
	Former(req *blk.Request) *blk.Request
	Latter(req *blk.Request) *blk.Request

	Pending() int
	Shutdown() error
}

// PlanStats is reported by policies that plan ahead.
type PlanStats struct {
	Plans       uint64
	ForcedPlans uint64
}

type Planner interface {
	PlanStats() PlanStats
}

type factory func(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (Scheduler, error)

var registry = map[string]factory{
	"algot": func(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (Scheduler, error) {
		return NewAlgotScheduler(cfg, obs)
	},
	"noop": func(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (Scheduler, error) {
		return NewNoopScheduler(obs), nil
	},
	"sstf": func(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (Scheduler, error) {
		return NewSSTFScheduler(blk.Sector(cfg.StartSector), obs), nil
	},
	"cscan": func(cfg config.SchedulerConfig, obs *observability.PolicyObserver) (Scheduler, error) {
		return NewCScanScheduler(blk.Sector(cfg.StartSector), obs), nil
	},
}

// Policies lists the registered policy names in sorted order.
func Policies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewScheduler builds the policy named by cfg.Policy. collector may be nil.
func NewScheduler(cfg config.SchedulerConfig, collector *observability.SchedulerCollector) (Scheduler, error) {
	build, ok := registry[cfg.Policy]
	if !ok {
		return nil, fmt.Errorf("unknown scheduling policy %q (available: %v)", cfg.Policy, Policies())
	}
	return build(cfg, collector.ForPolicy(cfg.Policy))
}
