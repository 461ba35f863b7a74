package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger
var schedulerLogger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Planner and dispatcher messages are keyed separately so they can be
	// grepped out of a simulation log.
	schedulerLogger = logrus.New()
	schedulerLogger.SetOutput(os.Stdout)
	schedulerLogger.SetLevel(logrus.WarnLevel)

	SetFormat("text")
}

func GetLogger() *logrus.Logger {
	return logger
}

func GetSchedulerLogger() *logrus.Logger {
	return schedulerLogger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetSchedulerLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	schedulerLogger.SetLevel(logLevel)
	return nil
}

// SetOutput redirects both loggers.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	schedulerLogger.SetOutput(w)
}

// SetFormat switches both loggers to "text" or "json" output.
func SetFormat(format string) error {
	schedulerFields := logrus.FieldMap{
		logrus.FieldKeyTime:  "time",
		logrus.FieldKeyLevel: "level",
		logrus.FieldKeyMsg:   "scheduler_msg",
	}
	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: false,
		})
		schedulerLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: false,
			FieldMap:      schedulerFields,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
		schedulerLogger.SetFormatter(&logrus.JSONFormatter{FieldMap: schedulerFields})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}
