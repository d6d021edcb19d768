package provider

import (
	"context"
	"fmt"
	"path"

	"github.com/pelletier/go-toml/v2"

	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/vfs"
)

// manifestDoc is the on-disk TOML shape of a library manifest.
type manifestDoc struct {
	// Name optionally overrides the configured library name.
	Name string `toml:"name"`

	// Files lists contributed paths, relative to the manifest's
	// directory unless absolute.
	Files []string `toml:"files"`
}

// ManifestProvider contributes the files listed in a TOML manifest.
// Typical use: a lockfile-style listing of downloaded dependencies.
// Entries that do not exist at discovery time are skipped rather than
// failing the pass; the restoration path can only revive files that
// were declared, so absent entries simply wait for the next rebuild.
type ManifestProvider struct {
	id           library.ProviderID
	name         string
	manifestPath string
	fs           vfs.VFS
}

// Ensure ManifestProvider implements library.Provider.
var _ library.Provider = (*ManifestProvider)(nil)

// NewManifestProvider creates a provider reading the given manifest.
func NewManifestProvider(id library.ProviderID, name, manifestPath string, filesystem vfs.VFS) *ManifestProvider {
	return &ManifestProvider{
		id:           id,
		name:         name,
		manifestPath: manifestPath,
		fs:           filesystem,
	}
}

// ID returns the provider identity.
func (p *ManifestProvider) ID() library.ProviderID {
	return p.id
}

// Name returns the library display name.
func (p *ManifestProvider) Name() string {
	return p.name
}

// DiscoverFiles parses the manifest and returns the listed files that
// currently exist. A missing manifest contributes nothing; a manifest
// that fails to parse is a provider failure.
func (p *ManifestProvider) DiscoverFiles(ctx context.Context, md library.Metadata) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifestPath := p.manifestPath
	if !path.IsAbs(manifestPath) && md.WorkspaceRoot != "" {
		manifestPath = p.fs.Join(md.WorkspaceRoot, manifestPath)
	}
	if !p.fs.Exists(manifestPath) {
		return nil, nil
	}

	data, err := p.fs.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", manifestPath, err)
	}

	var doc manifestDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", manifestPath, err)
	}

	baseDir := path.Dir(manifestPath)
	var files []string
	for _, f := range doc.Files {
		if !path.IsAbs(f) {
			f = p.fs.Join(baseDir, f)
		}
		if p.fs.IsRegular(f) {
			files = append(files, f)
		}
	}
	return files, nil
}
