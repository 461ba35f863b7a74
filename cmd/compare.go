package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"seekplan/internal/logging"
	"seekplan/internal/simulator"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type compareOptions struct {
	configFile string
	policies   string
	spoolDir   string
}

func newCompareCmd() *cobra.Command {
	var opts compareOptions

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Replay the same trace through several policies and compare seek cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return compareSimulation(ctx, cmd, opts)
		},
	}

	compareCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to simulation configuration file")
	compareCmd.Flags().StringVar(&opts.policies, "policies", "", "Comma separated policies to compare (default all of "+policyFlagHelp()+")")
	compareCmd.Flags().StringVar(&opts.spoolDir, "spool", "", "Write every run as a gzip JSON artifact into this directory")
	compareCmd.MarkFlagRequired("config")
	return compareCmd
}

func compareSimulation(ctx context.Context, cmd *cobra.Command, opts compareOptions) error {
	logger := logging.GetLogger()

	policies, err := parsePolicies(opts.policies)
	if err != nil {
		return err
	}
	sim, err := loadSimulation(opts.configFile)
	if err != nil {
		return err
	}

	spoolDir := opts.spoolDir
	if spoolDir == "" {
		spoolDir = sim.cfg.Simulation.Data.SpoolDir
	}

	reports := make([]*simulator.Report, 0, len(policies))
	for _, policy := range policies {
		report, start, end, err := sim.runPolicy(ctx, policy)
		if err != nil {
			logger.WithField("policy", policy).WithError(err).Error("Simulation failed")
			return err
		}
		logger.WithFields(logrus.Fields{
			"policy":     policy,
			"seek_total": report.TotalSeek,
			"makespan":   report.Makespan,
		}).Debug("Policy finished")

		if err := persistRun(ctx, sim, report, start, end, spoolDir); err != nil {
			return err
		}
		reports = append(reports, report)
	}

	printComparison(cmd.OutOrStdout(), reports)
	return nil
}
