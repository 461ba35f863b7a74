package simulator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/scheduler"
)

func newSim(t *testing.T, policy string, host config.HostConfig, dev config.DeviceConfig) *Simulator {
	t.Helper()
	info := config.SimulationInfo{
		Scheduler: config.SchedulerConfig{Policy: policy},
		Device:    dev,
		Host:      host,
	}
	sched, err := scheduler.NewScheduler(info.Scheduler, nil)
	if err != nil {
		t.Fatalf("NewScheduler(%s): %v", policy, err)
	}
	return New(info, sched)
}

func TestRun_MergesThroughNeighbours(t *testing.T) {
	sim := newSim(t, "algot", config.HostConfig{Merge: true, MaxMergeSectors: 64}, config.DeviceConfig{})
	trace := []config.TraceRequest{
		{Sector: 100, Sectors: 8},
		{Sector: 108, Sectors: 8},
		{Sector: 92, Sectors: 8},
	}

	report, err := sim.Run(context.Background(), trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Dispatched != 1 || report.Merged != 2 {
		t.Fatalf("expected 1 dispatch and 2 merges, got %d and %d", report.Dispatched, report.Merged)
	}
	if report.BackMerges != 1 || report.FrontMerges != 1 {
		t.Fatalf("expected one back and one front merge, got %d/%d", report.BackMerges, report.FrontMerges)
	}
	rec := report.Records[0]
	if rec.Sector != 92 || rec.Sectors != 24 || rec.Riders != 2 {
		t.Fatalf("unexpected merged record %+v", rec)
	}
	if report.Completed() != len(trace) {
		t.Fatalf("expected %d completions, got %d", len(trace), report.Completed())
	}
}

func TestRun_MergeRespectsDirectionAndLimit(t *testing.T) {
	sim := newSim(t, "algot", config.HostConfig{Merge: true, MaxMergeSectors: 16}, config.DeviceConfig{})
	trace := []config.TraceRequest{
		{Sector: 100, Sectors: 8},
		{Sector: 108, Sectors: 8, Write: true},
		{Sector: 116, Sectors: 8, Write: true},
		{Sector: 124, Sectors: 8, Write: true},
	}

	report, err := sim.Run(context.Background(), trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 108+116 merge up to the limit; the read at 100 and the write at 124 stay apart.
	if report.Merged != 1 || report.Dispatched != 3 {
		t.Fatalf("expected 1 merge and 3 dispatches, got %d and %d", report.Merged, report.Dispatched)
	}
}

func TestRun_AccountsSeekAndLatency(t *testing.T) {
	dev := config.DeviceConfig{SettleUS: 100, SeekNSPerSector: 1, TransferUSPerSector: 10}
	sim := newSim(t, "noop", config.HostConfig{}, dev)
	trace := []config.TraceRequest{
		{Sector: 1000, Sectors: 1},
		{Sector: 500, Sectors: 1},
	}

	report, err := sim.Run(context.Background(), trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalSeek != 1501 {
		t.Fatalf("expected total seek 1501, got %d", report.TotalSeek)
	}
	if report.MeanSeek != 750.5 {
		t.Fatalf("expected mean seek 750.5, got %v", report.MeanSeek)
	}
	if want := 221501 * time.Nanosecond; report.Makespan != want || report.MaxLatency != want {
		t.Fatalf("expected makespan and max latency %v, got %v and %v", want, report.Makespan, report.MaxLatency)
	}
	if want := 166250 * time.Nanosecond; report.MeanLatency != want {
		t.Fatalf("expected mean latency %v, got %v", want, report.MeanLatency)
	}
}

func TestRun_IdlesUntilNextArrival(t *testing.T) {
	sim := newSim(t, "noop", config.HostConfig{}, config.DeviceConfig{TransferUSPerSector: 1})
	trace := []config.TraceRequest{
		{Sector: 0, Sectors: 4},
		{AtUS: 1000, Sector: 4, Sectors: 4},
	}

	report, err := sim.Run(context.Background(), trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := 1004 * time.Microsecond; report.Makespan != want {
		t.Fatalf("expected makespan %v, got %v", want, report.Makespan)
	}
	if report.Records[1].Issued != 1000*time.Microsecond {
		t.Fatalf("second request issued at %v", report.Records[1].Issued)
	}
}

func TestRun_QueueDepthKeepsArrivalOrder(t *testing.T) {
	sim := newSim(t, "algot", config.HostConfig{QueueDepth: 1}, config.DeviceConfig{})
	trace := []config.TraceRequest{
		{Sector: 300, Sectors: 1},
		{Sector: 100, Sectors: 1},
		{Sector: 200, Sectors: 1},
	}

	report, err := sim.Run(context.Background(), trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, want := range []uint64{300, 100, 200} {
		if report.Records[i].Sector != want {
			t.Fatalf("dispatch %d: expected sector %d, got %d", i, want, report.Records[i].Sector)
		}
	}
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	sim := newSim(t, "algot", config.HostConfig{}, config.DeviceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, []config.TraceRequest{{Sector: 1, Sectors: 1}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_AlgotSeeksLessThanFIFO(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	trace := make([]config.TraceRequest, 64)
	for i := range trace {
		trace[i] = config.TraceRequest{Sector: uint64(rng.Intn(1 << 20)), Sectors: 1}
	}

	totals := map[string]uint64{}
	for _, policy := range []string{"algot", "noop"} {
		report, err := newSim(t, policy, config.HostConfig{}, config.DeviceConfig{}).Run(context.Background(), trace)
		if err != nil {
			t.Fatalf("%s: %v", policy, err)
		}
		if report.Dispatched != len(trace) {
			t.Fatalf("%s: dispatched %d of %d", policy, report.Dispatched, len(trace))
		}
		totals[policy] = report.TotalSeek
	}
	if totals["algot"] >= totals["noop"] {
		t.Fatalf("expected algot to seek less than noop, got %d vs %d", totals["algot"], totals["noop"])
	}
}

func TestRun_ReportsPlans(t *testing.T) {
	sim := newSim(t, "algot", config.HostConfig{}, config.DeviceConfig{})
	report, err := sim.Run(context.Background(), []config.TraceRequest{{Sector: 5, Sectors: 1}, {Sector: 9, Sectors: 1}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Plans == 0 {
		t.Fatalf("expected the planner to run at least once")
	}
}
