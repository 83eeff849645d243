package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"project-cleanup/internal/disk"
	"project-cleanup/internal/fsops"
	"project-cleanup/internal/metrics"
	"project-cleanup/internal/safety"
	"project-cleanup/internal/targets"
)

// Recorder persists a finished report, e.g. into the history database
type Recorder interface {
	RecordRun(report *Report) error
}

// getwd is swapped in tests to simulate an unresolvable working directory
var getwd = os.Getwd

// Runner performs one cleanup pass over a target set below root
type Runner struct {
	root      string
	set       targets.Set
	fs        fsops.FS
	validator *safety.Validator
	logger    log.FieldLogger
	metrics   *metrics.Collector // Optional
	recorder  Recorder           // Optional
	now       func() time.Time
}

// NewRunner creates a Runner that deletes through the real filesystem
func NewRunner(root string, set targets.Set, logger log.FieldLogger) *Runner {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Runner{
		root:      filepath.Clean(root),
		set:       set,
		fs:        fsops.OSDeleter{},
		validator: safety.NewValidator(root, nil),
		logger:    logger,
		now:       time.Now,
	}
}

// NewRunnerInWorkingDir creates a Runner rooted at the process working directory.
// Failing to resolve it is the only fatal error of a cleanup.
func NewRunnerInWorkingDir(set targets.Set, logger log.FieldLogger) (*Runner, error) {
	root, err := getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return NewRunner(root, set, logger), nil
}

// Run performs one pass over set in the working directory
func Run(set targets.Set, logger log.FieldLogger) (*Report, error) {
	r, err := NewRunnerInWorkingDir(set, logger)
	if err != nil {
		return nil, err
	}
	return r.Run(), nil
}

// SetFS replaces the filesystem used for existence checks and deletion
func (r *Runner) SetFS(fsys fsops.FS) {
	r.fs = fsys
}

// SetValidator replaces the default safety validator
func (r *Runner) SetValidator(v *safety.Validator) {
	r.validator = v
}

// SetMetrics attaches a metrics collector
func (r *Runner) SetMetrics(c *metrics.Collector) {
	r.metrics = c
}

// SetRecorder attaches a history recorder
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

func (r *Runner) Root() string {
	return r.root
}

// Run processes every directory target, then every file target, in list
// order. A failing target is reported and never stops the pass.
func (r *Runner) Run() *Report {
	report := &Report{
		Root:      r.root,
		StartedAt: r.now(),
		Results:   make([]Result, 0, r.set.Len()),
	}

	r.logger.WithFields(log.Fields{
		"root":    r.root,
		"targets": r.set.Len(),
	}).Debug("starting cleanup")

	for _, t := range r.set.All() {
		res := r.process(t)
		r.logResult(res)
		if r.metrics != nil {
			r.metrics.RecordTarget(t.Kind.String(), string(res.Outcome), res.Size)
		}
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = r.now()

	r.logger.WithFields(log.Fields{
		"removed":     report.Removed(),
		"absent":      report.Absent(),
		"errors":      report.Failed(),
		"bytes_freed": report.BytesFreed(),
	}).Info("cleanup complete")

	r.finish(report)
	return report
}

// process resolves, checks and deletes one target.
//
// Existence is checked with Lstat, so a symlink is judged as the link itself:
// a dangling symlink at a file target is present and its removal reports
// removed, not absent. A symlink at a directory target is a kind mismatch and
// is never followed.
func (r *Runner) process(t targets.Target) (res Result) {
	res = Result{Target: t, Path: filepath.Join(r.root, t.Name)}
	defer func() { res.At = r.now() }()

	path, err := r.validator.Resolve(t.Name)
	if err != nil {
		return failed(res, err)
	}
	res.Path = path

	info, err := r.fs.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		res.Outcome = OutcomeAbsent
		return res
	}
	if err != nil {
		return failed(res, err)
	}

	if err := checkKind(t.Kind, info); err != nil {
		return failed(res, err)
	}

	size := r.measure(path)

	if t.Kind == targets.KindDirectory {
		err = r.fs.RemoveAll(path)
	} else {
		err = r.fs.Remove(path)
	}
	if err != nil {
		return failed(res, err)
	}

	res.Outcome = OutcomeRemoved
	res.Size = size
	return res
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeError
	res.Err = err
	return res
}

// checkKind rejects entries that are not what the target was configured as.
// Directory targets must be real directories, not symlinks to one.
func checkKind(kind targets.Kind, info fs.FileInfo) error {
	switch kind {
	case targets.KindDirectory:
		if !info.IsDir() {
			return fmt.Errorf("%w: expected directory, found %s", ErrKindMismatch, describe(info.Mode()))
		}
	case targets.KindFile:
		if info.IsDir() {
			return fmt.Errorf("%w: expected file, found directory", ErrKindMismatch)
		}
	}
	return nil
}

func describe(mode fs.FileMode) string {
	switch {
	case mode&fs.ModeSymlink != 0:
		return "symlink"
	case mode.IsDir():
		return "directory"
	case mode.IsRegular():
		return "file"
	default:
		return mode.Type().String()
	}
}

// measure returns the bytes a target occupies, read through the runner's
// filesystem; zero when it cannot be walked
func (r *Runner) measure(path string) int64 {
	stats, err := disk.Usage(r.fs, path)
	if err != nil {
		r.logger.WithError(err).WithField("path", path).Debug("could not measure target size")
		return 0
	}
	return stats.UsedBytes
}

func (r *Runner) logResult(res Result) {
	entry := r.logger.WithFields(log.Fields{
		"outcome": res.Outcome,
		"kind":    res.Target.Kind.String(),
		"target":  res.Target.Name,
		"path":    res.Path,
	})

	switch res.Outcome {
	case OutcomeRemoved:
		entry.WithField("size", res.Size).Info("target removed")
	case OutcomeAbsent:
		entry.Info("target absent, already clean")
	default:
		entry.WithError(res.Err).Error("failed to remove target")
	}
}

// finish hands the report to the optional collaborators.
// Their failures are logged and never affect the report.
func (r *Runner) finish(report *Report) {
	if r.metrics != nil {
		r.metrics.RecordRun(report.FinishedAt, report.Duration(), report.Failed())
		if space, err := disk.Space(r.root); err == nil {
			r.metrics.SetFreeSpacePercent(space.FreePercent())
		} else {
			r.logger.WithError(err).Debug("could not read free space")
		}
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRun(report); err != nil {
			r.logger.WithError(err).Error("failed to record cleanup history")
		}
	}
}
