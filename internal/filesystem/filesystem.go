package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem exposes the filesystem operations required by the sync services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
}

// OSFileSystem implements FileSystem against the operating system.
type OSFileSystem struct{}

// Stat reports file information for the provided path.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Abs resolves the absolute representation of the provided path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}
