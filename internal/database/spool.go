package database

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/simulator"
)

const spoolVersion = 1

// SpoolArtifact is a self-contained record of one run, written to disk when
// no database is configured or the write failed.
type SpoolArtifact struct {
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	RunID         string `json:"run_id"`
	Name          string `json:"name"`
	TraceChecksum string `json:"trace_checksum"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	ConfigContent string `json:"config_content"`

	Metadata *RunMetadata      `json:"metadata"`
	Report   *simulator.Report `json:"report"`
}

func DefaultSpoolDir() string {
	if v := strings.TrimSpace(os.Getenv("SEEKPLAN_SPOOL_DIR")); v != "" {
		return v
	}
	return "spool"
}

// WriteSpoolArtifact writes a gzip-compressed JSON artifact to disk atomically.
// It returns the final file path.
func WriteSpoolArtifact(dir string, artifact *SpoolArtifact) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("spool artifact is nil")
	}
	if dir == "" {
		dir = DefaultSpoolDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	checksum := artifact.TraceChecksum
	if checksum == "" {
		checksum = "nocsum"
	}
	policy := "unknown"
	if artifact.Report != nil && artifact.Report.Policy != "" {
		policy = artifact.Report.Policy
	}
	name := fmt.Sprintf(
		"run_%s_%s_%s_%s.json.gz",
		artifact.CreatedAt.UTC().Format("20060102T150405Z"),
		policy,
		checksum,
		artifact.RunID,
	)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		_ = gz.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	ok = true
	return finalPath, nil
}

// ReadSpoolArtifact loads an artifact written by WriteSpoolArtifact.
func ReadSpoolArtifact(path string) (*SpoolArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open spool artifact %s: %w", path, err)
	}
	defer gz.Close()

	var artifact SpoolArtifact
	if err := json.NewDecoder(gz).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("decode spool artifact %s: %w", path, err)
	}
	if artifact.Version != spoolVersion {
		return nil, fmt.Errorf("spool artifact %s has version %d, expected %d", path, artifact.Version, spoolVersion)
	}
	if artifact.Metadata == nil || artifact.Report == nil {
		return nil, fmt.Errorf("spool artifact %s is missing metadata or report", path)
	}
	return &artifact, nil
}

// BuildSpoolArtifact constructs a spool artifact from an in-memory run.
func BuildSpoolArtifact(
	cfg *config.SimulationConfig,
	configContent string,
	metadata *RunMetadata,
	report *simulator.Report,
	startTime, endTime time.Time,
) *SpoolArtifact {
	artifact := &SpoolArtifact{
		Version:       spoolVersion,
		CreatedAt:     time.Now(),
		StartTime:     startTime,
		EndTime:       endTime,
		ConfigContent: configContent,
		Metadata:      metadata,
		Report:        report,
	}
	if cfg != nil {
		artifact.Name = cfg.Simulation.Name
		if cs, err := config.TraceChecksum(cfg); err == nil {
			artifact.TraceChecksum = cs
		}
	}
	if metadata != nil {
		artifact.RunID = metadata.RunID
		if artifact.TraceChecksum == "" {
			artifact.TraceChecksum = metadata.TraceChecksum
		}
		if artifact.Name == "" {
			artifact.Name = metadata.Name
		}
	}
	return artifact
}
