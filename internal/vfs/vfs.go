// Package vfs provides a virtual file system abstraction.
//
// The VFS interface allows swapping the underlying file system
// implementation, enabling testing with an in-memory file system. The
// cache consults it to decide whether a removed library root has become
// valid again, and providers use it to discover files.
package vfs

import (
	"io"
	"io/fs"
	"time"
)

// VFS is a virtual file system abstraction.
// It covers the read, stat and traversal operations the library cache
// needs, plus the minimal write surface used to stage test fixtures.
type VFS interface {
	// Read operations

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir reads a directory and returns its entries.
	ReadDir(path string) ([]FileInfo, error)

	// Write operations

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// Path operations

	// Abs returns the absolute path.
	Abs(path string) (string, error)

	// Join joins path elements.
	Join(elem ...string) string

	// Queries

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool

	// IsRegular returns true if the path is a regular file.
	IsRegular(path string) bool

	// Glob returns paths matching the pattern.
	Glob(pattern string) ([]string, error)

	// WalkDir walks the file tree rooted at root.
	WalkDir(root string, fn WalkDirFunc) error
}

// FileInfo describes a file or directory.
type FileInfo struct {
	// Path is the full path to the entry.
	Path string

	// Name is the base name of the entry.
	Name string

	// Size is the file size in bytes.
	Size int64

	// Mode is the file mode.
	Mode fs.FileMode

	// ModTime is the last modification time.
	ModTime time.Time

	// IsDir is true if the entry is a directory.
	IsDir bool
}

// WalkDirFunc is called for each entry visited by WalkDir.
// Returning fs.SkipDir skips the directory's contents.
type WalkDirFunc func(path string, info FileInfo, err error) error
