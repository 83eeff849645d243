package disk

import (
	"io/fs"
	"path/filepath"
	"syscall"
)

// Tree is the read side of a filesystem. fsops.FS satisfies it.
type Tree interface {
	Lstat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
}

// PathStats summarizes what a cleanup target occupies
type PathStats struct {
	UsedBytes int64 // Total bytes of regular files under the path
	FileCount int64 // Number of regular files under the path
}

// Usage walks path through tree without following symlinks and totals
// regular files. A regular file path yields its own size. Unreadable
// subtrees are skipped.
func Usage(tree Tree, path string) (*PathStats, error) {
	info, err := tree.Lstat(path)
	if err != nil {
		return nil, err
	}

	stats := &PathStats{}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			stats.add(info.Size())
		}
		return stats, nil
	}

	walk(tree, path, stats)
	return stats, nil
}

func walk(tree Tree, dir string, stats *PathStats) {
	entries, err := tree.ReadDir(dir)
	if err != nil {
		return // Skip errors
	}

	for _, e := range entries {
		switch {
		case e.IsDir():
			walk(tree, filepath.Join(dir, e.Name()), stats)
		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				continue
			}
			stats.add(info.Size())
		}
	}
}

func (s *PathStats) add(size int64) {
	s.UsedBytes += size
	s.FileCount++
}

// SpaceStats describes the filesystem holding a cleanup root
type SpaceStats struct {
	TotalBytes int64
	FreeBytes  int64 // Available to unprivileged users
}

// FreePercent returns the share of the filesystem still available
func (s *SpaceStats) FreePercent() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	return float64(s.FreeBytes) / float64(s.TotalBytes) * 100.0
}

// Space reads filesystem capacity for path with statfs
func Space(path string) (*SpaceStats, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return nil, err
	}
	return &SpaceStats{
		TotalBytes: int64(st.Blocks) * int64(st.Bsize),
		FreeBytes:  int64(st.Bavail) * int64(st.Bsize),
	}, nil
}
