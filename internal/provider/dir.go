// Package provider contains the built-in library providers: a
// directory-tree walker for generated source roots and a manifest
// reader for explicitly listed dependency files.
package provider

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/vfs"
)

// DirProvider contributes every regular file under a root directory,
// optionally filtered by extension. Typical use: a tree of generated
// sources produced by the build system.
type DirProvider struct {
	id         library.ProviderID
	name       string
	root       string
	extensions map[string]bool
	fs         vfs.VFS
}

// Ensure DirProvider implements library.Provider.
var _ library.Provider = (*DirProvider)(nil)

// NewDirProvider creates a provider walking root. If extensions is
// non-empty, only files with a matching extension are contributed.
func NewDirProvider(id library.ProviderID, name, root string, extensions []string, filesystem vfs.VFS) *DirProvider {
	var exts map[string]bool
	if len(extensions) > 0 {
		exts = make(map[string]bool, len(extensions))
		for _, e := range extensions {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[e] = true
		}
	}
	return &DirProvider{
		id:         id,
		name:       name,
		root:       root,
		extensions: exts,
		fs:         filesystem,
	}
}

// ID returns the provider identity.
func (p *DirProvider) ID() library.ProviderID {
	return p.id
}

// Name returns the library display name.
func (p *DirProvider) Name() string {
	return p.name
}

// DiscoverFiles walks the root and returns matching regular files.
// A missing root is not an error; the provider simply contributes
// nothing this pass, which drops its library from the snapshot.
func (p *DirProvider) DiscoverFiles(ctx context.Context, md library.Metadata) ([]string, error) {
	root := p.root
	if !path.IsAbs(root) && md.WorkspaceRoot != "" {
		root = p.fs.Join(md.WorkspaceRoot, root)
	}
	if !p.fs.Exists(root) {
		return nil, nil
	}

	var files []string
	err := p.fs.WalkDir(root, func(entryPath string, info vfs.FileInfo, err error) error {
		if err != nil {
			return nil // Unreadable entry, keep walking
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir || !info.Mode.IsRegular() {
			return nil
		}
		if p.extensions != nil && !p.extensions[path.Ext(entryPath)] {
			return nil
		}
		files = append(files, entryPath)
		return nil
	})
	if err != nil && err != fs.SkipDir {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}
