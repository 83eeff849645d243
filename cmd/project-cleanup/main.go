package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"project-cleanup/internal/cleanup"
	"project-cleanup/internal/config"
	"project-cleanup/internal/database"
	"project-cleanup/internal/exitcodes"
	"project-cleanup/internal/logging"
	"project-cleanup/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run performs one cleanup pass and returns the process exit code.
// Per-target failures still exit with exitcodes.Success.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Parse("project-cleanup", args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitcodes.Success
		}
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.InvalidConfig
	}

	logger, logCloser, err := logging.New(cfg.LoggingOptions(stdout))
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.InvalidConfig
	}
	defer logCloser.Close()

	runner, err := cleanup.NewRunnerInWorkingDir(cfg.Targets(), logger)
	if err != nil {
		logger.WithError(err).Error("cannot start cleanup")
		return exitcodes.RuntimeError
	}

	var collector *metrics.Collector
	if cfg.MetricsFile != "" {
		collector = metrics.NewCollector()
		runner.SetMetrics(collector)
	}

	if cfg.HistoryPath != "" {
		db, err := database.NewHistoryDB(cfg.HistoryPath)
		if err != nil {
			logger.WithError(err).WithField("path", cfg.HistoryPath).Error("history disabled: failed to open database")
		} else {
			defer func() {
				if err := db.Close(); err != nil {
					logger.WithError(err).Error("failed to close history database")
				}
			}()
			runner.SetRecorder(db)
		}
	}

	report := runner.Run()

	if collector != nil {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.WithError(err).Error("failed to write metrics")
		}
	}

	if cfg.ReportPath != "" {
		if err := report.WriteYAMLFile(cfg.ReportPath); err != nil {
			logger.WithError(err).Error("failed to write report")
		}
	}

	logger.WithFields(log.Fields{
		"duration": report.Duration(),
		"root":     report.Root,
	}).Debug("project-cleanup finished")

	return exitcodes.Success
}
