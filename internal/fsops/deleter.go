package fsops

import "io/fs"

// Deleter abstracts filesystem delete operations
// Enables injecting failures in tests without touching permissions
type Deleter interface {
	Remove(path string) error
	RemoveAll(path string) error
}

// FS is the full filesystem surface the cleanup runner needs:
// an existence check that does not follow symlinks, a directory listing
// for sizing a target, plus deletion.
type FS interface {
	Deleter
	Lstat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
}
