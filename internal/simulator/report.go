package simulator

import "time"

// Record describes one request issued to the device.
type Record struct {
	Seq       int           `json:"seq"`
	RequestID uint64        `json:"request_id"`
	Sector    uint64        `json:"sector"`
	Sectors   uint32        `json:"sectors"`
	Write     bool          `json:"write"`
	Seek      uint64        `json:"seek"`
	Issued    time.Duration `json:"issued_ns"`
	Completed time.Duration `json:"completed_ns"`
	Latency   time.Duration `json:"latency_ns"`
	Riders    int           `json:"riders,omitempty"`
}

// Report summarises a simulation run. Latencies cover every trace request,
// including the ones merged into another.
type Report struct {
	Policy           string `json:"policy"`
	SchedulerVersion string `json:"scheduler_version"`

	Requests    int `json:"requests"`
	Dispatched  int `json:"dispatched"`
	Merged      int `json:"merged"`
	BackMerges  int `json:"back_merges"`
	FrontMerges int `json:"front_merges"`

	TotalSeek   uint64        `json:"total_seek"`
	MeanSeek    float64       `json:"mean_seek"`
	MeanLatency time.Duration `json:"mean_latency_ns"`
	MaxLatency  time.Duration `json:"max_latency_ns"`
	Makespan    time.Duration `json:"makespan_ns"`

	Plans       uint64 `json:"plans,omitempty"`
	ForcedPlans uint64 `json:"forced_plans,omitempty"`

	Records []Record `json:"records,omitempty"`

	completed    int
	latencyTotal time.Duration
}

func (r *Report) add(rec Record) {
	r.Records = append(r.Records, rec)
	r.Dispatched++
	r.TotalSeek += rec.Seek
	r.observeLatency(rec.Latency)
}

func (r *Report) observeLatency(d time.Duration) {
	r.completed++
	r.latencyTotal += d
	if d > r.MaxLatency {
		r.MaxLatency = d
	}
}

func (r *Report) finish() {
	if r.Dispatched > 0 {
		r.MeanSeek = float64(r.TotalSeek) / float64(r.Dispatched)
	}
	if r.completed > 0 {
		r.MeanLatency = r.latencyTotal / time.Duration(r.completed)
	}
}

// Completed returns how many trace requests finished, merged ones included.
func (r *Report) Completed() int {
	return r.completed
}
