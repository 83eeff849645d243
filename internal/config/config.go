package config

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"project-cleanup/internal/logging"
	"project-cleanup/internal/targets"
)

type LoggingCfg struct {
	Level        string // logrus level name
	File         string // Optional log file appended alongside stdout
	RotationDays int    // Days to append to File before rotating it
}

// Config is the effective configuration of one cleanup process.
// Target lists are compiled in; everything else is optional and off by default.
type Config struct {
	Directories []string
	Files       []string
	HistoryPath string // SQLite database recording each run, disabled when empty
	MetricsFile string // Prometheus textfile written after the run, disabled when empty
	ReportPath  string // YAML report written after the run, disabled when empty
	Logging     LoggingCfg
}

var (
	errNegativeRotation = errors.New("log-rotation-days cannot be negative")
	errUnexpectedArgs   = errors.New("unexpected positional arguments")
)

// Default returns the configuration used when no flags are given
func Default() *Config {
	set := targets.Default()
	return &Config{
		Directories: set.Directories(),
		Files:       set.Files(),
		Logging: LoggingCfg{
			Level:        "info",
			RotationDays: logging.DefaultRotationDays,
		},
	}
}

// Parse applies command-line overrides on top of Default.
// pflag.ErrHelp is returned unwrapped when help was requested.
func Parse(name string, args []string, output io.Writer) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Logging.File, "log-file", "", "Append log output to this file as well as stdout")
	fs.IntVar(&cfg.Logging.RotationDays, "log-rotation-days", cfg.Logging.RotationDays, "Rotate the log file after this many days")
	fs.StringVar(&cfg.HistoryPath, "history", "", "Record the run into this SQLite database")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	fs.StringVar(&cfg.ReportPath, "report", "", "Write a YAML report of the run to this file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: %v", errUnexpectedArgs, fs.Args())
	}

	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	if c.Logging.RotationDays < 0 {
		return errNegativeRotation
	}
	if c.Logging.RotationDays == 0 {
		c.Logging.RotationDays = logging.DefaultRotationDays
	}

	return nil
}

// Targets returns the immutable target table for the run
func (c *Config) Targets() targets.Set {
	return targets.New(c.Directories, c.Files)
}

// LoggingOptions maps the logging section onto logging.Options
func (c *Config) LoggingOptions(out io.Writer) logging.Options {
	return logging.Options{
		Level:        c.Logging.Level,
		File:         c.Logging.File,
		RotationDays: c.Logging.RotationDays,
		Out:          out,
	}
}
