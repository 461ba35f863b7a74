package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/simulator"

	"github.com/google/uuid"
)

func sampleRun() (*config.SimulationConfig, *RunMetadata, *simulator.Report) {
	cfg := &config.SimulationConfig{
		Simulation: config.SimulationInfo{
			Name:   "spool-test",
			Device: config.DeviceConfig{Sectors: 1000},
		},
		Trace: config.TraceConfig{
			Generator: config.GeneratorExplicit,
			Requests:  []config.TraceRequest{{Sector: 10, Sectors: 8}, {AtUS: 3, Sector: 400, Sectors: 8}},
		},
	}
	report := &simulator.Report{
		Policy:     "algot",
		Requests:   2,
		Dispatched: 2,
		TotalSeek:  400,
		Records: []simulator.Record{
			{Seq: 0, RequestID: 1, Sector: 10, Sectors: 8, Seek: 10},
			{Seq: 1, RequestID: 2, Sector: 400, Sectors: 8, Seek: 382, Issued: 5 * time.Microsecond},
		},
	}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := CollectRunMetadata(uuid.NewString(), cfg, "simulation: {}", report, start, start.Add(time.Second), "test")
	return cfg, meta, report
}

func TestSpoolArtifact_RoundTrip(t *testing.T) {
	cfg, meta, report := sampleRun()
	dir := t.TempDir()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	artifact := BuildSpoolArtifact(cfg, "simulation: {}", meta, report, start, start.Add(time.Second))
	path, err := WriteSpoolArtifact(dir, artifact)
	if err != nil {
		t.Fatalf("WriteSpoolArtifact: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("artifact written outside spool dir: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "run_") || !strings.HasSuffix(base, meta.RunID+".json.gz") {
		t.Fatalf("unexpected artifact name %s", base)
	}
	if !strings.Contains(base, "_algot_"+artifact.TraceChecksum+"_") {
		t.Fatalf("artifact name %s should carry policy and checksum", base)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final artifact in the spool dir, found %d entries", len(entries))
	}

	got, err := ReadSpoolArtifact(path)
	if err != nil {
		t.Fatalf("ReadSpoolArtifact: %v", err)
	}
	if got.RunID != meta.RunID || got.Name != "spool-test" {
		t.Fatalf("unexpected identity %q/%q", got.RunID, got.Name)
	}
	if got.Report.TotalSeek != 400 || len(got.Report.Records) != 2 {
		t.Fatalf("report did not survive the round trip: %+v", got.Report)
	}
	if got.Report.Records[1].Issued != 5*time.Microsecond {
		t.Fatalf("expected issue time 5us, got %v", got.Report.Records[1].Issued)
	}
	if got.Metadata.TraceChecksum != artifact.TraceChecksum || len(artifact.TraceChecksum) != 6 {
		t.Fatalf("checksum mismatch: %q vs %q", got.Metadata.TraceChecksum, artifact.TraceChecksum)
	}
}

func TestReadSpoolArtifact_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadSpoolArtifact(path); err == nil {
		t.Fatalf("expected an error for a non-gzip file")
	}
}

func TestDefaultSpoolDir_FromEnvironment(t *testing.T) {
	t.Setenv("SEEKPLAN_SPOOL_DIR", " /tmp/seekplan-spool ")
	if got := DefaultSpoolDir(); got != "/tmp/seekplan-spool" {
		t.Fatalf("expected env override, got %q", got)
	}
	t.Setenv("SEEKPLAN_SPOOL_DIR", "")
	if got := DefaultSpoolDir(); got != "spool" {
		t.Fatalf("expected default spool dir, got %q", got)
	}
}

func TestBuildPoints(t *testing.T) {
	_, meta, report := sampleRun()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	points := BuildPoints(meta, report, start)
	if len(points) != 3 {
		t.Fatalf("expected 1 meta and 2 dispatch points, got %d", len(points))
	}
	if points[0].Name() != "simulation_meta" || points[1].Name() != "dispatch" {
		t.Fatalf("unexpected measurements %q, %q", points[0].Name(), points[1].Name())
	}
	if want := start.Add(5 * time.Microsecond); !points[2].Time().Equal(want) {
		t.Fatalf("expected dispatch stamped %v, got %v", want, points[2].Time())
	}
	found := false
	for _, tag := range points[1].TagList() {
		if tag.Key == "run_id" && tag.Value == meta.RunID {
			found = true
		}
	}
	if !found {
		t.Fatalf("dispatch point is missing the run_id tag")
	}
}
