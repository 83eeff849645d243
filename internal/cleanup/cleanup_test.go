package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"project-cleanup/internal/fsops"
	"project-cleanup/internal/metrics"
	"project-cleanup/internal/safety"
	"project-cleanup/internal/targets"
)

func mkdirWithFile(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "index.js"), []byte("module.exports = {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func outcomes(report *Report) []Outcome {
	out := make([]Outcome, 0, len(report.Results))
	for _, res := range report.Results {
		out = append(out, res.Outcome)
	}
	return out
}

func names(report *Report) []string {
	out := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		out = append(out, res.Target.Name)
	}
	return out
}

// TestScenarioDefaultTargets runs the compiled-in table against a root where
// only vite-project and dummy.db exist
func TestScenarioDefaultTargets(t *testing.T) {
	root := t.TempDir()
	mkdirWithFile(t, filepath.Join(root, "vite-project"))
	writeFile(t, filepath.Join(root, "dummy.db"), 16)

	logger, hook := test.NewNullLogger()
	report := NewRunner(root, targets.Default(), logger).Run()

	require.Equal(t, []string{
		"vite-project", "BD TESTE",
		"clean_db.js", "fix_database.js", "fix_db.js", "database.sqlite", "dummy.db",
	}, names(report))
	require.Equal(t, []Outcome{
		OutcomeRemoved, OutcomeAbsent,
		OutcomeAbsent, OutcomeAbsent, OutcomeAbsent, OutcomeAbsent, OutcomeRemoved,
	}, outcomes(report))

	for _, name := range names(report) {
		_, err := os.Lstat(filepath.Join(root, name))
		require.True(t, os.IsNotExist(err), "%s should not exist after cleanup", name)
	}

	// One status line per target, then the completion line.
	entries := hook.AllEntries()
	require.Len(t, entries, 8)
	for i, res := range report.Results {
		require.Equal(t, res.Outcome, entries[i].Data["outcome"])
		require.Equal(t, res.Target.Name, entries[i].Data["target"])
	}
	last := entries[len(entries)-1]
	require.Equal(t, "cleanup complete", last.Message)
	require.Equal(t, 2, last.Data["removed"])
	require.Equal(t, 5, last.Data["absent"])
	require.Equal(t, 0, last.Data["errors"])

	require.Equal(t, 2, report.Removed())
	require.Equal(t, 5, report.Absent())
	require.Zero(t, report.Failed())
	require.Equal(t, int64(16+len("module.exports = {}")+len("{}")), report.BytesFreed())
}

// TestAbsentTargetsStayAbsent verifies an empty root reports every target absent
func TestAbsentTargetsStayAbsent(t *testing.T) {
	root := t.TempDir()
	logger, _ := test.NewNullLogger()

	report := NewRunner(root, targets.Default(), logger).Run()

	require.Len(t, report.Results, 7)
	require.Equal(t, 7, report.Absent())
	for _, res := range report.Results {
		require.NoError(t, res.Err)
		require.Equal(t, filepath.Join(root, res.Target.Name), res.Path)
		require.False(t, res.At.IsZero())
	}
}

// TestIdempotentRuns verifies a second pass finds nothing left to remove
func TestIdempotentRuns(t *testing.T) {
	root := t.TempDir()
	mkdirWithFile(t, filepath.Join(root, "vite-project"))
	mkdirWithFile(t, filepath.Join(root, "BD TESTE"))
	for _, f := range targets.Default().Files() {
		writeFile(t, filepath.Join(root, f), 4)
	}
	keep := filepath.Join(root, "App.tsx")
	writeFile(t, keep, 8)

	logger, _ := test.NewNullLogger()
	runner := NewRunner(root, targets.Default(), logger)

	first := runner.Run()
	require.Equal(t, 7, first.Removed())

	entriesAfterFirst, err := os.ReadDir(root)
	require.NoError(t, err)

	second := runner.Run()
	require.Equal(t, 7, second.Absent())
	require.Zero(t, second.Removed())

	entriesAfterSecond, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Equal(t, len(entriesAfterFirst), len(entriesAfterSecond))
	require.Len(t, entriesAfterSecond, 1)
	require.Equal(t, "App.tsx", entriesAfterSecond[0].Name())
}

// TestFailureIsIsolated injects a permission error on one target and checks
// every other target is still processed
func TestFailureIsIsolated(t *testing.T) {
	root := "/project"
	set := targets.Default()
	var dirs, files []string
	for _, d := range set.Directories() {
		dirs = append(dirs, filepath.Join(root, d))
	}
	for _, f := range set.Files() {
		files = append(files, filepath.Join(root, f))
	}
	fake := fsops.NewFakeDeleter(dirs, files)
	fake.Errors[filepath.Join(root, "vite-project")] = fs.ErrPermission

	logger, hook := test.NewNullLogger()
	runner := NewRunner(root, set, logger)
	runner.SetFS(fake)

	report := runner.Run()

	require.Equal(t, []Outcome{
		OutcomeError, OutcomeRemoved,
		OutcomeRemoved, OutcomeRemoved, OutcomeRemoved, OutcomeRemoved, OutcomeRemoved,
	}, outcomes(report))
	require.True(t, errors.Is(report.Results[0].Err, fs.ErrPermission))
	require.True(t, fake.Exists(filepath.Join(root, "vite-project")))
	require.False(t, fake.Exists(filepath.Join(root, "BD TESTE")))

	require.Equal(t, []string{
		"rmall:/project/vite-project",
		"rmall:/project/BD TESTE",
		"rm:/project/clean_db.js",
		"rm:/project/fix_database.js",
		"rm:/project/fix_db.js",
		"rm:/project/database.sqlite",
		"rm:/project/dummy.db",
	}, fake.Calls)

	entries := hook.AllEntries()
	require.Len(t, entries, 8)
	require.Equal(t, log.ErrorLevel, entries[0].Level)
	require.Equal(t, "failed to remove target", entries[0].Message)
	require.Equal(t, "cleanup complete", entries[7].Message)
	require.Equal(t, 1, entries[7].Data["errors"])
}

// TestPermissionDeniedOnRealFilesystem locks a subtree so RemoveAll fails
func TestPermissionDeniedOnRealFilesystem(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "vite-project", "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	writeFile(t, filepath.Join(locked, "keep"), 1)
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	writeFile(t, filepath.Join(root, "fix_db.js"), 3)

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.Default(), logger).Run()

	require.Equal(t, OutcomeError, report.Results[0].Outcome)
	require.Error(t, report.Results[0].Err)
	require.Equal(t, OutcomeAbsent, report.Results[1].Outcome)
	require.Equal(t, OutcomeRemoved, report.Results[4].Outcome)
	require.Equal(t, 1, report.Failed())
}

// TestFileTargetsUseSingleEntryDeletion verifies files go through Remove, never RemoveAll
func TestFileTargetsUseSingleEntryDeletion(t *testing.T) {
	fake := fsops.NewFakeDeleter(nil, []string{"/p/a.db", "/p/b.db"})
	logger, _ := test.NewNullLogger()
	runner := NewRunner("/p", targets.New(nil, []string{"a.db", "b.db"}), logger)
	runner.SetFS(fake)

	report := runner.Run()

	require.Equal(t, 2, report.Removed())
	require.Equal(t, []string{"rm:/p/a.db", "rm:/p/b.db"}, fake.Calls)
}

// TestKindMismatch verifies a target of the wrong entry type is an error and left alone
func TestKindMismatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "vite-project"), 1)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dummy.db"), 0o755))

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.New([]string{"vite-project"}, []string{"dummy.db"}), logger).Run()

	require.Equal(t, []Outcome{OutcomeError, OutcomeError}, outcomes(report))
	for _, res := range report.Results {
		require.True(t, errors.Is(res.Err, ErrKindMismatch), res.Err)
		_, err := os.Lstat(res.Path)
		require.NoError(t, err, "%s must be left in place", res.Path)
	}
}

// TestSymlinkedDirectoryIsNotFollowed verifies a directory target that is a
// symlink is reported instead of removing what it points at
func TestSymlinkedDirectoryIsNotFollowed(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "precious"), 1)

	root := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "vite-project")))

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.New([]string{"vite-project"}, nil), logger).Run()

	require.Equal(t, OutcomeError, report.Results[0].Outcome)
	require.True(t, errors.Is(report.Results[0].Err, ErrKindMismatch))
	_, err := os.Stat(filepath.Join(outside, "precious"))
	require.NoError(t, err)
}

// TestSymlinkFileTargetRemovesLinkOnly verifies a file target symlink is unlinked, not its target
func TestSymlinkFileTargetRemovesLinkOnly(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "real.db")
	writeFile(t, outside, 5)

	root := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "dummy.db")))

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.New(nil, []string{"dummy.db"}), logger).Run()

	require.Equal(t, OutcomeRemoved, report.Results[0].Outcome)
	require.Zero(t, report.Results[0].Size)
	_, err := os.Stat(outside)
	require.NoError(t, err)
}

// TestDanglingSymlinkFileTargetIsRemoved verifies a link whose target is gone
// is still present under Lstat and gets unlinked
func TestDanglingSymlinkFileTargetIsRemoved(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "fix_db.js")
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.js"), link))

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.New(nil, []string{"fix_db.js"}), logger).Run()

	require.Equal(t, OutcomeRemoved, report.Results[0].Outcome)
	_, err := os.Lstat(link)
	require.True(t, os.IsNotExist(err))
}

// TestUnsafeNamesAreRejected verifies the validator runs before the filesystem is touched
func TestUnsafeNamesAreRejected(t *testing.T) {
	fake := fsops.NewFakeDeleter([]string{"/sibling"}, []string{"/etc/passwd"})
	logger, _ := test.NewNullLogger()
	runner := NewRunner("/p", targets.New([]string{"../sibling"}, []string{"/etc/passwd", ""}), logger)
	runner.SetFS(fake)

	report := runner.Run()

	require.Equal(t, []Outcome{OutcomeError, OutcomeError, OutcomeError}, outcomes(report))
	require.True(t, errors.Is(report.Results[0].Err, safety.ErrTraversal))
	require.True(t, errors.Is(report.Results[1].Err, safety.ErrAbsoluteName))
	require.True(t, errors.Is(report.Results[2].Err, safety.ErrInvalidName))
	require.Empty(t, fake.Calls)
}

// TestStatFailureIsAnError verifies non-existence is the only stat failure treated as absent
func TestStatFailureIsAnError(t *testing.T) {
	fake := fsops.NewFakeDeleter(nil, nil)
	fake.StatErrors["/p/dummy.db"] = fs.ErrPermission

	logger, _ := test.NewNullLogger()
	runner := NewRunner("/p", targets.New(nil, []string{"dummy.db"}), logger)
	runner.SetFS(fake)

	report := runner.Run()
	require.Equal(t, OutcomeError, report.Results[0].Outcome)
	require.True(t, errors.Is(report.Results[0].Err, fs.ErrPermission))
}

type fakeRecorder struct {
	reports []*Report
	err     error
}

func (f *fakeRecorder) RecordRun(report *Report) error {
	f.reports = append(f.reports, report)
	return f.err
}

// TestRecorderAndMetricsReceiveRun verifies optional collaborators see the finished report
func TestRecorderAndMetricsReceiveRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dummy.db"), 100)

	logger, _ := test.NewNullLogger()
	rec := &fakeRecorder{}
	collector := metrics.NewCollector()

	runner := NewRunner(root, targets.Default(), logger)
	runner.SetRecorder(rec)
	runner.SetMetrics(collector)
	report := runner.Run()

	require.Len(t, rec.reports, 1)
	require.Same(t, report, rec.reports[0])

	require.Equal(t, 1.0, testutil.ToFloat64(collector.TargetsTotal.WithLabelValues("file", "removed")))
	require.Equal(t, 4.0, testutil.ToFloat64(collector.TargetsTotal.WithLabelValues("file", "absent")))
	require.Equal(t, 2.0, testutil.ToFloat64(collector.TargetsTotal.WithLabelValues("directory", "absent")))
	require.Equal(t, 100.0, testutil.ToFloat64(collector.BytesFreedTotal))
	require.Equal(t, 0.0, testutil.ToFloat64(collector.LastRunErrors))
}

// TestRecorderFailureIsNotFatal verifies a history failure only logs
func TestRecorderFailureIsNotFatal(t *testing.T) {
	logger, hook := test.NewNullLogger()
	runner := NewRunner(t.TempDir(), targets.Default(), logger)
	runner.SetRecorder(&fakeRecorder{err: errors.New("disk full")})

	report := runner.Run()

	require.Equal(t, 7, report.Absent())
	last := hook.LastEntry()
	require.Equal(t, log.ErrorLevel, last.Level)
	require.Equal(t, "failed to record cleanup history", last.Message)
}

// TestRunWorkingDirectoryFailure verifies the fatal case processes nothing
func TestRunWorkingDirectoryFailure(t *testing.T) {
	orig := getwd
	getwd = func() (string, error) { return "", errors.New("getwd: no such file or directory") }
	t.Cleanup(func() { getwd = orig })

	logger, hook := test.NewNullLogger()
	report, err := Run(targets.Default(), logger)

	require.Error(t, err)
	require.Contains(t, err.Error(), "resolve working directory")
	require.Nil(t, report)
	require.Empty(t, hook.AllEntries())
}

// TestRunUsesWorkingDirectory verifies the package-level Run resolves its root from getwd
func TestRunUsesWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "fix_database.js"), 2)

	orig := getwd
	getwd = func() (string, error) { return root, nil }
	t.Cleanup(func() { getwd = orig })

	logger, _ := test.NewNullLogger()
	report, err := Run(targets.Default(), logger)
	require.NoError(t, err)
	require.Equal(t, root, report.Root)
	require.Equal(t, 1, report.Removed())
}

// TestRootBelowSystemPrefix runs the default pass in a container style
// WORKDIR under /usr; targets are removed or absent, never rejected
func TestRootBelowSystemPrefix(t *testing.T) {
	root := "/usr/src/app"
	fake := fsops.NewFakeDeleter(
		[]string{filepath.Join(root, "vite-project"), filepath.Join(root, "vite-project", "src")},
		[]string{
			filepath.Join(root, "vite-project", "index.html"),
			filepath.Join(root, "vite-project", "src", "main.tsx"),
			filepath.Join(root, "dummy.db"),
		},
	)
	fake.Sizes[filepath.Join(root, "vite-project", "index.html")] = 300
	fake.Sizes[filepath.Join(root, "vite-project", "src", "main.tsx")] = 50
	fake.Sizes[filepath.Join(root, "dummy.db")] = 16

	logger, hook := test.NewNullLogger()
	runner := NewRunner(root, targets.Default(), logger)
	runner.SetFS(fake)

	report := runner.Run()

	require.Equal(t, []Outcome{
		OutcomeRemoved, OutcomeAbsent,
		OutcomeAbsent, OutcomeAbsent, OutcomeAbsent, OutcomeAbsent, OutcomeRemoved,
	}, outcomes(report))
	require.Equal(t, int64(350), report.Results[0].Size)
	require.Equal(t, int64(16), report.Results[6].Size)
	require.Equal(t, int64(366), report.BytesFreed())
	require.Equal(t, []string{"rmall:/usr/src/app/vite-project", "rm:/usr/src/app/dummy.db"}, fake.Calls)
	require.False(t, fake.Exists(filepath.Join(root, "vite-project", "src", "main.tsx")))

	last := hook.LastEntry()
	require.Equal(t, "cleanup complete", last.Message)
	require.Equal(t, 0, last.Data["errors"])
}

// TestRealRootBelowSystemPrefix repeats the pass on disk when /usr/local is writable
func TestRealRootBelowSystemPrefix(t *testing.T) {
	root, err := os.MkdirTemp("/usr/local", "project-cleanup-")
	if err != nil {
		t.Skipf("/usr/local not writable: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(root) })

	mkdirWithFile(t, filepath.Join(root, "vite-project"))
	writeFile(t, filepath.Join(root, "dummy.db"), 16)

	logger, _ := test.NewNullLogger()
	report := NewRunner(root, targets.Default(), logger).Run()

	require.Zero(t, report.Failed())
	require.Equal(t, 2, report.Removed())
	require.Equal(t, 5, report.Absent())
	_, err = os.Lstat(filepath.Join(root, "vite-project"))
	require.True(t, os.IsNotExist(err))
}
