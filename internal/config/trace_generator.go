package config

import (
	"fmt"
	"math/rand"
	"sort"
)

// ExpandTrace returns the concrete request trace described by cfg, ordered by
// arrival time. Generated traces depend only on the trace settings and the
// device size, so the same seed always yields the same trace.
func ExpandTrace(cfg *SimulationConfig) ([]TraceRequest, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	tr := cfg.Trace
	dev := cfg.Simulation.Device

	if tr.Generator == GeneratorExplicit {
		out := append([]TraceRequest(nil), tr.Requests...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].AtUS < out[j].AtUS })
		return out, nil
	}

	rng := rand.New(rand.NewSource(tr.Seed))
	out := make([]TraceRequest, 0, tr.Count)

	var now float64
	var cursor uint64
	for i := 0; i < tr.Count; i++ {
		if i > 0 && tr.InterarrivalUS > 0 {
			now += rng.ExpFloat64() * tr.InterarrivalUS
		}

		size := tr.Size.Min
		if tr.Size.Max > tr.Size.Min {
			size += uint32(rng.Int63n(int64(tr.Size.Max-tr.Size.Min) + 1))
		}
		limit := dev.Sectors - uint64(size)

		var sector uint64
		switch tr.Generator {
		case GeneratorSequential:
			sector = cursor
		case GeneratorMixed:
			if i > 0 && rng.Float64() < tr.SequentialRatio {
				sector = cursor
			} else {
				sector = uint64(rng.Int63n(int64(limit) + 1))
			}
		default:
			sector = uint64(rng.Int63n(int64(limit) + 1))
		}
		if sector > limit {
			sector = 0
		}
		cursor = sector + uint64(size)

		out = append(out, TraceRequest{
			AtUS:    now,
			Sector:  sector,
			Sectors: size,
			Write:   tr.WriteRatio > 0 && rng.Float64() < tr.WriteRatio,
		})
	}
	return out, nil
}
