package database

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/logging"
	"seekplan/internal/simulator"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// RunMetadata describes one simulation run of one policy.
type RunMetadata struct {
	RunID            string  `json:"run_id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Policy           string  `json:"policy"`
	SchedulerVersion string  `json:"scheduler_version"`
	DriverVersion    string  `json:"driver_version"`
	TraceChecksum    string  `json:"trace_checksum"`
	Started          string  `json:"started"`  // RFC3339 timestamp
	Finished         string  `json:"finished"` // RFC3339 timestamp
	WallSeconds      float64 `json:"wall_seconds"`
	Hostname         string  `json:"hostname"`
	OSInfo           string  `json:"os_info"`
	KernelVersion    string  `json:"kernel_version"`
	ConfigFile       string  `json:"config_file"`
}

type SystemInfo struct {
	Hostname      string
	OSInfo        string
	KernelVersion string
}

func collectSystemInfo() *SystemInfo {
	info := &SystemInfo{
		Hostname:      "unknown",
		OSInfo:        runtime.GOOS + "/" + runtime.GOARCH,
		KernelVersion: "unknown",
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if data, err := os.ReadFile("/proc/version"); err == nil {
		if parts := strings.Fields(string(data)); len(parts) >= 3 {
			info.KernelVersion = parts[2]
		}
	}
	return info
}

// CollectRunMetadata fills the metadata for a finished run.
func CollectRunMetadata(runID string, cfg *config.SimulationConfig, configContent string, report *simulator.Report, startTime, endTime time.Time, driverVersion string) *RunMetadata {
	sys := collectSystemInfo()
	checksum, err := config.TraceChecksum(cfg)
	if err != nil {
		logging.GetLogger().WithError(err).Warn("Failed to compute trace checksum")
	}
	return &RunMetadata{
		RunID:            runID,
		Name:             cfg.Simulation.Name,
		Description:      cfg.Simulation.Description,
		Policy:           report.Policy,
		SchedulerVersion: report.SchedulerVersion,
		DriverVersion:    driverVersion,
		TraceChecksum:    checksum,
		Started:          startTime.Format(time.RFC3339),
		Finished:         endTime.Format(time.RFC3339),
		WallSeconds:      endTime.Sub(startTime).Seconds(),
		Hostname:         sys.Hostname,
		OSInfo:           sys.OSInfo,
		KernelVersion:    sys.KernelVersion,
		ConfigFile:       configContent,
	}
}

// ResultWriter stores finished runs.
type ResultWriter interface {
	WriteRun(ctx context.Context, meta *RunMetadata, report *simulator.Report, startTime time.Time) error
	Close()
}

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

func NewInfluxDBClient(cfg config.DatabaseConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Password)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, err
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": msg,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not healthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Name,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Name),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Name,
	}, nil
}

// WriteRun stores the run summary as one "simulation_meta" point and every
// dispatch as a "dispatch" point stamped at startTime plus its simulated
// issue time.
func (idb *InfluxDBClient) WriteRun(ctx context.Context, meta *RunMetadata, report *simulator.Report, startTime time.Time) error {
	points := BuildPoints(meta, report, startTime)
	if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d points for run %s: %w", len(points), meta.RunID, err)
	}
	logging.GetLogger().WithFields(logrus.Fields{
		"run_id": meta.RunID,
		"points": len(points),
	}).Info("Wrote run to InfluxDB")
	return nil
}

// RunIDsForTrace lists the runs recorded in the last 30 days for a trace.
func (idb *InfluxDBClient) RunIDsForTrace(ctx context.Context, checksum string) ([]string, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -30d)
		|> filter(fn: (r) => r._measurement == "simulation_meta" and r.trace_checksum == "%s")
		|> keep(columns: ["run_id"])
		|> distinct(column: "run_id")
	`, idb.bucket, checksum)

	result, err := idb.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for trace %s: %w", checksum, err)
	}
	defer result.Close()

	var ids []string
	for result.Next() {
		if id, ok := result.Record().Value().(string); ok {
			ids = append(ids, id)
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query results: %w", result.Err())
	}
	return ids, nil
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}

// BuildPoints converts a run into line-protocol points.
func BuildPoints(meta *RunMetadata, report *simulator.Report, startTime time.Time) []*write.Point {
	tags := map[string]string{
		"run_id":         meta.RunID,
		"policy":         report.Policy,
		"trace_checksum": meta.TraceChecksum,
	}

	points := make([]*write.Point, 0, len(report.Records)+1)
	points = append(points, influxdb2.NewPoint("simulation_meta",
		tags,
		map[string]interface{}{
			"name":              meta.Name,
			"description":       meta.Description,
			"scheduler_version": meta.SchedulerVersion,
			"driver_version":    meta.DriverVersion,
			"started":           meta.Started,
			"finished":          meta.Finished,
			"wall_seconds":      meta.WallSeconds,
			"hostname":          meta.Hostname,
			"os_info":           meta.OSInfo,
			"kernel_version":    meta.KernelVersion,
			"requests":          report.Requests,
			"dispatched":        report.Dispatched,
			"merged":            report.Merged,
			"total_seek":        report.TotalSeek,
			"mean_seek":         report.MeanSeek,
			"mean_latency_ns":   report.MeanLatency.Nanoseconds(),
			"max_latency_ns":    report.MaxLatency.Nanoseconds(),
			"makespan_ns":       report.Makespan.Nanoseconds(),
			"plans":             report.Plans,
			"forced_plans":      report.ForcedPlans,
			"config_file":       meta.ConfigFile,
		},
		startTime))

	for _, rec := range report.Records {
		points = append(points, influxdb2.NewPoint("dispatch",
			tags,
			map[string]interface{}{
				"seq":        rec.Seq,
				"request_id": rec.RequestID,
				"sector":     rec.Sector,
				"sectors":    rec.Sectors,
				"write":      rec.Write,
				"seek":       rec.Seek,
				"latency_ns": rec.Latency.Nanoseconds(),
				"riders":     rec.Riders,
			},
			startTime.Add(rec.Issued)))
	}
	return points
}
