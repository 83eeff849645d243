package fsops

import (
	"io/fs"
	"os"
)

// OSDeleter implements FS using real os package calls
type OSDeleter struct{}

func (OSDeleter) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

func (OSDeleter) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}

func (OSDeleter) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
