package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seekplan/internal/config"
	"seekplan/internal/database"
	"seekplan/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var remove bool

	uploadCmd := &cobra.Command{
		Use:   "upload <artifact|dir>...",
		Short: "Write spooled runs to InfluxDB",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db := config.DatabaseFromEnv()
			if db == nil {
				return fmt.Errorf("INFLUXDB_HOST is not set")
			}
			paths, err := spoolPaths(args)
			if err != nil {
				return err
			}
			client, err := database.NewInfluxDBClient(*db)
			if err != nil {
				return fmt.Errorf("failed to create database client: %w", err)
			}
			defer client.Close()
			return uploadArtifacts(cmd.Context(), client, paths, remove)
		},
	}
	uploadCmd.Flags().BoolVar(&remove, "remove", false, "Delete each artifact after a successful upload")
	return uploadCmd
}

// spoolPaths expands directories into the artifacts they contain.
func spoolPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json.gz") {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

// storedRuns is implemented by writers that can list the runs they already
// hold for a trace.
type storedRuns interface {
	RunIDsForTrace(ctx context.Context, checksum string) ([]string, error)
}

func uploadArtifacts(ctx context.Context, w database.ResultWriter, paths []string, remove bool) error {
	logger := logging.GetLogger()
	if ctx == nil {
		ctx = context.Background()
	}

	lister, _ := w.(storedRuns)
	stored := make(map[string]map[string]bool)
	alreadyStored := func(artifact *database.SpoolArtifact) bool {
		if lister == nil || artifact.TraceChecksum == "" {
			return false
		}
		ids, ok := stored[artifact.TraceChecksum]
		if !ok {
			list, err := lister.RunIDsForTrace(ctx, artifact.TraceChecksum)
			if err != nil {
				logger.WithField("trace_checksum", artifact.TraceChecksum).WithError(err).Warn("Could not list stored runs, uploading anyway")
				return false
			}
			ids = make(map[string]bool, len(list))
			for _, id := range list {
				ids[id] = true
			}
			stored[artifact.TraceChecksum] = ids
		}
		return ids[artifact.RunID]
	}

	var failed, skipped int
	for _, path := range paths {
		artifact, err := database.ReadSpoolArtifact(path)
		if err != nil {
			logger.WithField("path", path).WithError(err).Error("Skipping unreadable artifact")
			failed++
			continue
		}

		if alreadyStored(artifact) {
			logger.WithFields(logrus.Fields{
				"path":   path,
				"run_id": artifact.RunID,
			}).Info("Run already stored, skipping")
			skipped++
		} else {
			if err := writeRun(ctx, w, artifact.Metadata, artifact.Report, artifact.StartTime); err != nil {
				logger.WithField("path", path).WithError(err).Error("Upload failed")
				failed++
				continue
			}
			logger.WithFields(logrus.Fields{
				"path":   path,
				"run_id": artifact.RunID,
				"age":    time.Since(artifact.CreatedAt).Round(time.Second),
			}).Info("Uploaded spooled run")
		}

		if remove {
			if err := os.Remove(path); err != nil {
				logger.WithField("path", path).WithError(err).Warn("Failed to remove uploaded artifact")
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"artifacts": len(paths),
		"skipped":   skipped,
		"failed":    failed,
	}).Debug("Upload finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d artifacts failed to upload", failed, len(paths))
	}
	return nil
}
