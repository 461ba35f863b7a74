package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
simulation:
  name: ${SEEKPLAN_TEST_NAME}
  scheduler:
    policy: ALGOT
    capacity: 32
  device:
    sectors: 100000
    settle_us: 400
    seek_ns_per_sector: 20
    transfer_us_per_sector: 2
  host:
    merge: true
trace:
  requests:
    - {at_us: 0, sector: 50}
    - {at_us: 5, sector: 10, sectors: 16, write: true}
`

func TestParseConfig_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("SEEKPLAN_TEST_NAME", "from-env")
	t.Setenv("INFLUXDB_HOST", "")

	cfg, err := ParseConfig(sampleConfig)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Simulation.Name != "from-env" {
		t.Fatalf("expected env expansion, got %q", cfg.Simulation.Name)
	}
	if cfg.Simulation.Scheduler.Policy != "algot" {
		t.Fatalf("expected normalised policy, got %q", cfg.Simulation.Scheduler.Policy)
	}
	if cfg.Trace.Generator != GeneratorExplicit {
		t.Fatalf("expected explicit generator, got %q", cfg.Trace.Generator)
	}
	if cfg.Trace.Requests[0].Sectors != 8 || cfg.Trace.Requests[1].Sectors != 16 {
		t.Fatalf("unexpected request sizes %+v", cfg.Trace.Requests)
	}
	if cfg.Simulation.Host.MaxMergeSectors != DefaultMaxMergeSectors {
		t.Fatalf("expected default merge limit, got %d", cfg.Simulation.Host.MaxMergeSectors)
	}
	if cfg.Simulation.Data.DB != nil {
		t.Fatalf("expected no database without INFLUXDB_HOST")
	}
}

func TestParseConfig_DatabaseFromEnvironment(t *testing.T) {
	t.Setenv("SEEKPLAN_TEST_NAME", "db")
	t.Setenv("INFLUXDB_HOST", "http://localhost:8086")
	t.Setenv("INFLUXDB_BUCKET", "seekplan")
	t.Setenv("INFLUXDB_USER", "u")
	t.Setenv("INFLUXDB_TOKEN", "tok")
	t.Setenv("INFLUXDB_ORG", "org")

	cfg, err := ParseConfig(sampleConfig)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	db := cfg.Simulation.Data.DB
	if db == nil || db.Host != "http://localhost:8086" || db.Password != "tok" {
		t.Fatalf("unexpected database config %+v", db)
	}

	t.Setenv("INFLUXDB_ORG", "")
	if _, err := ParseConfig(sampleConfig); err == nil || !strings.Contains(err.Error(), "incomplete database") {
		t.Fatalf("expected incomplete database error, got %v", err)
	}
}

func TestParseConfig_Validation(t *testing.T) {
	t.Setenv("INFLUXDB_HOST", "")
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "trace: {count: 1}", "name is required"},
		{"negative capacity", "simulation: {name: x, scheduler: {capacity: -1}}\ntrace: {count: 1}", "capacity"},
		{"capacity too large", "simulation: {name: x, scheduler: {capacity: 5000}}\ntrace: {count: 1}", "exceeds the maximum of 1024"},
		{"scheduler log level", "simulation: {name: x, scheduler: {log_level: loud}}\ntrace: {count: 1}", "scheduler log_level"},
		{"unknown generator", "simulation: {name: x}\ntrace: {generator: zipf, count: 1}", "unknown trace generator"},
		{"zero count", "simulation: {name: x}\ntrace: {generator: random}", "count"},
		{"size order", "simulation: {name: x}\ntrace: {count: 1, size: {min: 16, max: 8}}", "exceeds max"},
		{"beyond device", "simulation: {name: x, device: {sectors: 100}}\ntrace: {requests: [{sector: 99, sectors: 8}]}", "beyond the device"},
		{"write ratio", "simulation: {name: x}\ntrace: {count: 1, write_ratio: 2}", "write_ratio"},
		{"bad yaml", "simulation: [", "parse config"},
	}
	for _, c := range cases {
		_, err := ParseConfig(c.yaml)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: expected error containing %q, got %v", c.name, c.want, err)
		}
	}
}

func TestParseConfig_AcceptsMaxCapacityAndSchedulerLogLevel(t *testing.T) {
	t.Setenv("INFLUXDB_HOST", "")
	cfg, err := ParseConfig("simulation: {name: x, scheduler: {capacity: 1024, log_level: debug}}\ntrace: {count: 1}")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Simulation.Scheduler.Capacity != 1024 || cfg.Simulation.Scheduler.LogLevel != "debug" {
		t.Fatalf("unexpected scheduler config %+v", cfg.Simulation.Scheduler)
	}
}

func TestLoadConfigWithContent_ReturnsOriginalText(t *testing.T) {
	t.Setenv("SEEKPLAN_TEST_NAME", "file")
	t.Setenv("INFLUXDB_HOST", "")
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, content, err := LoadConfigWithContent(path)
	if err != nil {
		t.Fatalf("LoadConfigWithContent: %v", err)
	}
	if content != sampleConfig {
		t.Fatalf("expected unexpanded original content")
	}
	if cfg.Simulation.Name != "file" {
		t.Fatalf("unexpected name %q", cfg.Simulation.Name)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDeviceTimings(t *testing.T) {
	dev := DeviceConfig{SettleUS: 100, SeekNSPerSector: 10, TransferUSPerSector: 2}
	if dev.SeekTime(0) != 0 {
		t.Fatalf("zero-distance seek must be free")
	}
	if got := dev.SeekTime(1000); got.Microseconds() != 110 {
		t.Fatalf("expected 110us seek, got %v", got)
	}
	if got := dev.TransferTime(8); got.Microseconds() != 16 {
		t.Fatalf("expected 16us transfer, got %v", got)
	}
}
