package vfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFS implements VFS using an in-memory file system.
// It is primarily used for testing restoration and provider discovery
// without touching the real disk.
//
// MemFS is safe for concurrent use. Paths are slash-separated and
// rooted at "/".
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
	}
}

// Ensure MemFS implements VFS.
var _ VFS = (*MemFS)(nil)

// Open opens a file for reading.
func (m *MemFS) Open(filePath string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: filePath, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}

	// Return a copy to prevent modification
	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	if f, ok := m.files[filePath]; ok {
		return FileInfo{
			Path:    filePath,
			Name:    path.Base(filePath),
			Size:    int64(len(f.content)),
			Mode:    f.mode,
			ModTime: f.modTime,
		}, nil
	}
	if m.dirs[filePath] {
		return FileInfo{
			Path:  filePath,
			Name:  path.Base(filePath),
			Mode:  fs.ModeDir | 0o755,
			IsDir: true,
		}, nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// ReadDir reads a directory and returns its entries.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dirPath = m.cleanPath(dirPath)
	if !m.dirs[dirPath] {
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}

	var infos []FileInfo
	for p, f := range m.files {
		if m.parentDir(p) == dirPath {
			infos = append(infos, FileInfo{
				Path:    p,
				Name:    path.Base(p),
				Size:    int64(len(f.content)),
				Mode:    f.mode,
				ModTime: f.modTime,
			})
		}
	}
	for p := range m.dirs {
		if p != "/" && m.parentDir(p) == dirPath {
			infos = append(infos, FileInfo{
				Path:  p,
				Name:  path.Base(p),
				Mode:  fs.ModeDir | 0o755,
				IsDir: true,
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// WriteFile writes data to a file, creating parent directories as needed.
func (m *MemFS) WriteFile(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)
	if m.dirs[filePath] {
		return &fs.PathError{Op: "write", Path: filePath, Err: fs.ErrInvalid}
	}

	m.mkdirAllLocked(m.parentDir(filePath))

	content := make([]byte, len(data))
	copy(content, data)
	m.files[filePath] = &memFile{
		content: content,
		mode:    perm,
		modTime: time.Now(),
	}
	return nil
}

// MkdirAll creates a directory and all parent directories.
func (m *MemFS) MkdirAll(dirPath string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mkdirAllLocked(m.cleanPath(dirPath))
	return nil
}

// Remove removes a file or empty directory.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		return nil
	}
	if m.dirs[filePath] {
		for p := range m.files {
			if m.parentDir(p) == filePath {
				return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrInvalid}
			}
		}
		delete(m.dirs, filePath)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
}

// Abs returns the absolute path. MemFS paths are already rooted.
func (m *MemFS) Abs(filePath string) (string, error) {
	return m.cleanPath(filePath), nil
}

// Join joins path elements using slashes.
func (m *MemFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// Exists returns true if the path exists.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		return true
	}
	return m.dirs[filePath]
}

// IsDir returns true if the path is a directory.
func (m *MemFS) IsDir(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[m.cleanPath(filePath)]
}

// IsRegular returns true if the path is a regular file.
func (m *MemFS) IsRegular(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[m.cleanPath(filePath)]
	return ok
}

// Glob returns paths matching the pattern.
func (m *MemFS) Glob(pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []string
	for p := range m.files {
		ok, err := path.Match(pattern, p)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// WalkDir walks the file tree rooted at root in lexical order.
func (m *MemFS) WalkDir(root string, fn WalkDirFunc) error {
	root = m.cleanPath(root)

	// Snapshot entries under the read lock, then walk without it so the
	// callback may call back into the file system.
	m.mu.RLock()
	if !m.dirs[root] {
		m.mu.RUnlock()
		return fn(root, FileInfo{}, &fs.PathError{Op: "walk", Path: root, Err: fs.ErrNotExist})
	}

	var entries []FileInfo
	for p := range m.dirs {
		if p != root && m.underDir(p, root) {
			entries = append(entries, FileInfo{
				Path:  p,
				Name:  path.Base(p),
				Mode:  fs.ModeDir | 0o755,
				IsDir: true,
			})
		}
	}
	for p, f := range m.files {
		if m.underDir(p, root) {
			entries = append(entries, FileInfo{
				Path:    p,
				Name:    path.Base(p),
				Size:    int64(len(f.content)),
				Mode:    f.mode,
				ModTime: f.modTime,
			})
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	rootInfo := FileInfo{Path: root, Name: path.Base(root), Mode: fs.ModeDir | 0o755, IsDir: true}
	if err := fn(root, rootInfo, nil); err != nil {
		if err == fs.SkipDir {
			return nil
		}
		return err
	}

	var skip string
	for _, e := range entries {
		if skip != "" && m.underDir(e.Path, skip) {
			continue
		}
		err := fn(e.Path, e, nil)
		if err == fs.SkipDir {
			if e.IsDir {
				skip = e.Path
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// cleanPath normalizes a path to a rooted, slash-separated form.
func (m *MemFS) cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// parentDir returns the parent directory of a cleaned path.
func (m *MemFS) parentDir(p string) string {
	return path.Dir(p)
}

// underDir reports whether p is inside dir.
func (m *MemFS) underDir(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, dir+"/")
}

// mkdirAllLocked creates dir and all parents. Caller holds the write lock.
func (m *MemFS) mkdirAllLocked(dir string) {
	for dir != "/" && dir != "." {
		m.dirs[dir] = true
		dir = path.Dir(dir)
	}
}
