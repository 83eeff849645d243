package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultRotationDays is how long a log file is appended to before rotation
const DefaultRotationDays = 30

// Options configures the logger built by New
type Options struct {
	Level        string    // logrus level name, defaults to info
	File         string    // optional log file appended alongside Out
	RotationDays int       // rotate File once it is older than this
	Out          io.Writer // defaults to os.Stdout
}

// New creates a logger writing to Out and, if set, to File.
// The returned closer releases the log file and is never nil.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	logger.SetLevel(level)
	logger.SetOutput(out)

	if opts.File == "" {
		return logger, nopCloser{}, nil
	}

	if dir := filepath.Dir(opts.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.WithError(err).Warnf("failed to ensure log directory %s", dir)
		}
	}

	rotateDays := DefaultRotationDays
	if opts.RotationDays > 0 {
		rotateDays = opts.RotationDays
	}
	rotateLogsIfNeeded(logger, opts.File, rotateDays)

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.WithError(err).Warnf("failed to open log file %s", opts.File)
		return logger, nopCloser{}, nil
	}

	logger.SetOutput(io.MultiWriter(out, f))
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rotateLogsIfNeeded rotates log files older than the specified days
func rotateLogsIfNeeded(logger *log.Logger, logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		// Log file doesn't exist yet, nothing to rotate
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			logger.WithError(err).Warn("failed to rotate log file")
			return
		}

		cleanupOldLogs(logger, logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotation days
func cleanupOldLogs(logger *log.Logger, logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				logger.WithError(err).Warnf("failed to remove old log file %s", fullPath)
			}
		}
	}
}
