package provider

import (
	"fmt"

	"github.com/tmcrae/synthlib/internal/config"
	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/vfs"
)

// FromConfig builds a provider registry from the configured provider
// list. The registry is composed once at startup; there is no dynamic
// discovery.
func FromConfig(cfg config.Config, filesystem vfs.VFS) (*library.Registry, error) {
	registry := library.NewRegistry()

	for _, pc := range cfg.Providers {
		var p library.Provider
		switch pc.Kind {
		case config.KindDir:
			p = NewDirProvider(library.ProviderID(pc.ID), pc.Name, pc.Root, pc.Extensions, filesystem)
		case config.KindManifest:
			p = NewManifestProvider(library.ProviderID(pc.ID), pc.Name, pc.Manifest, filesystem)
		default:
			return nil, fmt.Errorf("provider %s: %w: %q", pc.ID, config.ErrUnknownKind, pc.Kind)
		}
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("registering provider %s: %w", pc.ID, err)
		}
	}
	return registry, nil
}
