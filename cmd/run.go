package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/database"
	"seekplan/internal/logging"
	"seekplan/internal/observability"
	"seekplan/internal/scheduler"
	"seekplan/internal/simulator"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configFile  string
	policy      string
	metricsAddr string
	spoolDir    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a trace through one scheduling policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, cmd, opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to simulation configuration file")
	runCmd.Flags().StringVar(&opts.policy, "policy", "", "Override the configured policy, one of "+policyFlagHelp())
	runCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address while running")
	runCmd.Flags().StringVar(&opts.spoolDir, "spool", "", "Write the run as a gzip JSON artifact into this directory")
	runCmd.MarkFlagRequired("config")
	return runCmd
}

// simulation bundles what every policy run of one config shares.
type simulation struct {
	cfg           *config.SimulationConfig
	configContent string
	trace         []config.TraceRequest
	collector     *observability.SchedulerCollector
}

func loadSimulation(configFile string) (*simulation, error) {
	logger := logging.GetLogger()

	cfg, content, err := config.LoadConfigWithContent(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Failed to load configuration")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Simulation.LogLevel != "" {
		if err := logging.SetLogLevel(cfg.Simulation.LogLevel); err != nil {
			logger.WithField("log_level", cfg.Simulation.LogLevel).WithError(err).Warn("Invalid log level in config, using INFO")
			logging.SetLogLevel("info")
		} else {
			logger.WithField("log_level", cfg.Simulation.LogLevel).Debug("Log level set from configuration")
		}
	}

	if lvl := cfg.Simulation.Scheduler.LogLevel; lvl != "" {
		if err := logging.SetSchedulerLogLevel(lvl); err != nil {
			logger.WithField("scheduler_log_level", lvl).WithError(err).Warn("Invalid scheduler log level, using default")
		} else {
			logger.WithField("scheduler_log_level", lvl).Debug("Scheduler log level set from configuration")
		}
	}

	trace, err := config.ExpandTrace(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to expand trace: %w", err)
	}
	return &simulation{cfg: cfg, configContent: content, trace: trace}, nil
}

// runPolicy replays the trace through a fresh instance of policy.
func (s *simulation) runPolicy(ctx context.Context, policy string) (*simulator.Report, time.Time, time.Time, error) {
	info := s.cfg.Simulation
	info.Scheduler.Policy = policy

	sched, err := scheduler.NewScheduler(info.Scheduler, s.collector)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	start := time.Now()
	report, err := simulator.New(info, sched).Run(ctx, s.trace)
	end := time.Now()
	if err != nil {
		return nil, start, end, fmt.Errorf("simulate %s: %w", policy, err)
	}
	return report, start, end, nil
}

func runSimulation(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	logger := logging.GetLogger()

	sim, err := loadSimulation(opts.configFile)
	if err != nil {
		return err
	}

	policy := sim.cfg.Simulation.Scheduler.Policy
	if opts.policy != "" {
		policy = opts.policy
	}
	policies, err := parsePolicies(policy)
	if err != nil {
		return err
	}
	if len(policies) != 1 {
		return fmt.Errorf("run takes exactly one policy, got %v", policies)
	}
	policy = policies[0]

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		sim.collector, err = observability.NewSchedulerCollector(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		srv := serveMetrics(opts.metricsAddr, sim.collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.WithFields(logrus.Fields{
		"simulation": sim.cfg.Simulation.Name,
		"policy":     policy,
		"requests":   len(sim.trace),
	}).Info("Running simulation")

	report, start, end, err := sim.runPolicy(ctx, policy)
	if err != nil {
		logger.WithField("policy", policy).WithError(err).Error("Simulation failed")
		return err
	}

	printReport(cmd.OutOrStdout(), report)

	spoolDir := opts.spoolDir
	if spoolDir == "" {
		spoolDir = sim.cfg.Simulation.Data.SpoolDir
	}
	return persistRun(ctx, sim, report, start, end, spoolDir)
}

// persistRun writes the run to InfluxDB when a database is configured and
// spools it to disk when asked to or when the database write fails.
func persistRun(ctx context.Context, sim *simulation, report *simulator.Report, start, end time.Time, spoolDir string) error {
	logger := logging.GetLogger()

	runID := uuid.NewString()
	meta := database.CollectRunMetadata(runID, sim.cfg, sim.configContent, report, start, end, Version)

	spool := spoolDir != ""
	if db := sim.cfg.Simulation.Data.DB; db != nil {
		if err := writeToDatabase(ctx, *db, meta, report, start); err != nil {
			logger.WithField("run_id", runID).WithError(err).Warn("Database write failed, spooling run to disk")
			spool = true
		}
	}

	if !spool {
		if sim.cfg.Simulation.Data.DB == nil {
			logger.WithField("run_id", runID).Debug("No database or spool directory configured, results not persisted")
		}
		return nil
	}

	artifact := database.BuildSpoolArtifact(sim.cfg, sim.configContent, meta, report, start, end)
	path, err := database.WriteSpoolArtifact(spoolDir, artifact)
	if err != nil {
		logger.WithField("run_id", runID).WithError(err).Error("Failed to write spool artifact")
		return fmt.Errorf("failed to spool run %s: %w", runID, err)
	}
	logger.WithFields(logrus.Fields{
		"run_id": runID,
		"path":   path,
	}).Info("Spooled run")
	return nil
}

func writeToDatabase(ctx context.Context, db config.DatabaseConfig, meta *database.RunMetadata, report *simulator.Report, start time.Time) error {
	client, err := database.NewInfluxDBClient(db)
	if err != nil {
		return fmt.Errorf("failed to create database client: %w", err)
	}
	defer client.Close()
	return writeRun(ctx, client, meta, report, start)
}

func writeRun(ctx context.Context, w database.ResultWriter, meta *database.RunMetadata, report *simulator.Report, start time.Time) error {
	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return w.WriteRun(writeCtx, meta, report, start)
}

func serveMetrics(addr string, collector *observability.SchedulerCollector) *http.Server {
	logger := logging.GetLogger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("addr", addr).WithError(err).Warn("Metrics server exited")
		}
	}()

	logger.WithField("addr", addr).Info("Serving Prometheus metrics")
	return srv
}
