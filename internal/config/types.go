package config

import (
	"time"
)

type SimulationConfig struct {
	Simulation SimulationInfo `yaml:"simulation"`
	Trace      TraceConfig    `yaml:"trace"`
}

type SimulationInfo struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	LogLevel    string          `yaml:"log_level"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Device      DeviceConfig    `yaml:"device"`
	Host        HostConfig      `yaml:"host"`
	Data        DataConfig      `yaml:"data"`
}

type SchedulerConfig struct {
	Policy         string `yaml:"policy"`
	Capacity       int    `yaml:"capacity"`
	DirtyThreshold int    `yaml:"dirty_threshold"`
	StartSector    uint64 `yaml:"start_sector"`
	LogLevel       string `yaml:"log_level"`
}

// DeviceConfig describes the simulated disk. A seek of d sectors costs
// settle + d*seek_ns_per_sector; moving no distance costs nothing.
type DeviceConfig struct {
	Sectors             uint64  `yaml:"sectors"`
	SettleUS            float64 `yaml:"settle_us"`
	SeekNSPerSector     float64 `yaml:"seek_ns_per_sector"`
	TransferUSPerSector float64 `yaml:"transfer_us_per_sector"`
}

type HostConfig struct {
	// QueueDepth caps requests held by the scheduler; 0 means unlimited.
	QueueDepth      int    `yaml:"queue_depth"`
	Merge           bool   `yaml:"merge"`
	MaxMergeSectors uint32 `yaml:"max_merge_sectors"`
}

type DataConfig struct {
	DB       *DatabaseConfig `yaml:"db,omitempty"`
	SpoolDir string          `yaml:"spool_dir,omitempty"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Org      string `yaml:"org"`
}

type TraceConfig struct {
	Generator       string         `yaml:"generator"`
	Seed            int64          `yaml:"seed"`
	Count           int            `yaml:"count"`
	InterarrivalUS  float64        `yaml:"interarrival_us"`
	Size            SizeRange      `yaml:"size"`
	WriteRatio      float64        `yaml:"write_ratio"`
	SequentialRatio float64        `yaml:"sequential_ratio"`
	Requests        []TraceRequest `yaml:"requests,omitempty"`
}

type SizeRange struct {
	Min uint32 `yaml:"min"`
	Max uint32 `yaml:"max"`
}

type TraceRequest struct {
	AtUS    float64 `yaml:"at_us" json:"at_us"`
	Sector  uint64  `yaml:"sector" json:"sector"`
	Sectors uint32  `yaml:"sectors" json:"sectors"`
	Write   bool    `yaml:"write,omitempty" json:"write,omitempty"`
}

const (
	GeneratorRandom     = "random"
	GeneratorSequential = "sequential"
	GeneratorMixed      = "mixed"
	GeneratorExplicit   = "explicit"

	DefaultPolicy          = "algot"
	DefaultDeviceSectors   = 1 << 21
	DefaultMaxMergeSectors = 256
)

func (t TraceRequest) Arrival() time.Duration {
	return time.Duration(t.AtUS * float64(time.Microsecond))
}

func (d DeviceConfig) Settle() time.Duration {
	return time.Duration(d.SettleUS * float64(time.Microsecond))
}

// SeekTime returns the positioning time for a move of dist sectors.
func (d DeviceConfig) SeekTime(dist uint64) time.Duration {
	if dist == 0 {
		return 0
	}
	return d.Settle() + time.Duration(float64(dist)*d.SeekNSPerSector)
}

func (d DeviceConfig) TransferTime(sectors uint32) time.Duration {
	return time.Duration(float64(sectors) * d.TransferUSPerSector * float64(time.Microsecond))
}
