package fsops

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// FakeDeleter implements FS for testing
// Keeps an in-memory set of entries and records all delete calls
type FakeDeleter struct {
	Calls []string

	// Entries maps a path to whether it is a directory.
	Entries map[string]bool
	// Sizes reported by Lstat and ReadDir for file entries; missing means 0.
	Sizes map[string]int64
	// Errors are returned by Remove/RemoveAll for the given path.
	Errors map[string]error
	// StatErrors are returned by Lstat for the given path.
	StatErrors map[string]error
}

// NewFakeDeleter creates a FakeDeleter with the given directories and files present
func NewFakeDeleter(dirs, files []string) *FakeDeleter {
	f := &FakeDeleter{
		Entries:    make(map[string]bool),
		Sizes:      make(map[string]int64),
		Errors:     make(map[string]error),
		StatErrors: make(map[string]error),
	}
	for _, d := range dirs {
		f.Entries[filepath.Clean(d)] = true
	}
	for _, p := range files {
		f.Entries[filepath.Clean(p)] = false
	}
	return f
}

func (f *FakeDeleter) Lstat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	if err, ok := f.StatErrors[path]; ok {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	isDir, ok := f.Entries[path]
	if !ok {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
	}
	return f.info(path, isDir), nil
}

// ReadDir lists the direct children of path sorted by name
func (f *FakeDeleter) ReadDir(path string) ([]fs.DirEntry, error) {
	path = filepath.Clean(path)
	if err, ok := f.StatErrors[path]; ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	isDir, ok := f.Entries[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if !isDir {
		return nil, &fs.PathError{Op: "readdirent", Path: path, Err: syscall.ENOTDIR}
	}

	var entries []fs.DirEntry
	for p, dir := range f.Entries {
		if p != path && filepath.Dir(p) == path {
			entries = append(entries, fs.FileInfoToDirEntry(f.info(p, dir)))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	path = filepath.Clean(path)
	if err, ok := f.Errors[path]; ok {
		return &fs.PathError{Op: "remove", Path: path, Err: err}
	}
	delete(f.Entries, path)
	return nil
}

func (f *FakeDeleter) RemoveAll(path string) error {
	f.Calls = append(f.Calls, "rmall:"+path)
	path = filepath.Clean(path)
	if err, ok := f.Errors[path]; ok {
		return &fs.PathError{Op: "unlinkat", Path: path, Err: err}
	}
	prefix := path + string(filepath.Separator)
	for p := range f.Entries {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(f.Entries, p)
		}
	}
	return nil
}

// Exists reports whether path is still present in the fake
func (f *FakeDeleter) Exists(path string) bool {
	_, ok := f.Entries[filepath.Clean(path)]
	return ok
}

func (f *FakeDeleter) info(path string, dir bool) fakeInfo {
	i := fakeInfo{name: filepath.Base(path), dir: dir}
	if !dir {
		i.size = f.Sizes[path]
	}
	return i
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (i fakeInfo) Name() string { return i.name }
func (i fakeInfo) Size() int64  { return i.size }
func (i fakeInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }
