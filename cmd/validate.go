package cmd

import (
	"fmt"

	"seekplan/internal/config"
	"seekplan/internal/logging"
	"seekplan/internal/scheduler"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var configFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a simulation configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configFile)
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to simulation configuration file")
	validateCmd.MarkFlagRequired("config")
	return validateCmd
}

func validateConfig(configFile string) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	if _, err := parsePolicies(cfg.Simulation.Scheduler.Policy); err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	trace, err := config.ExpandTrace(cfg)
	if err != nil {
		return fmt.Errorf("failed to expand trace: %w", err)
	}
	checksum, err := config.TraceChecksum(cfg)
	if err != nil {
		return fmt.Errorf("failed to checksum trace: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"config_file":    configFile,
		"policy":         cfg.Simulation.Scheduler.Policy,
		"requests":       len(trace),
		"trace_checksum": checksum,
	}).Info("Configuration is valid")
	return nil
}

// policyFlagHelp lists the registered policies for flag descriptions.
func policyFlagHelp() string {
	return fmt.Sprintf("%v", scheduler.Policies())
}
