// Package config loads the daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Common errors returned by configuration loading.
var (
	ErrNoProviders     = errors.New("no providers configured")
	ErrDuplicateID     = errors.New("duplicate provider id")
	ErrUnknownKind     = errors.New("unknown provider kind")
	ErrMissingRoot     = errors.New("provider root is required")
	ErrMissingManifest = errors.New("provider manifest is required")
)

// ParseError wraps a TOML syntax error with its source path.
type ParseError struct {
	Path string
	Err  error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Provider kinds.
const (
	KindDir      = "dir"
	KindManifest = "manifest"
)

// Config is the daemon configuration.
type Config struct {
	Watch     WatchConfig      `toml:"watch"`
	Providers []ProviderConfig `toml:"provider"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Root is the directory tree to watch for deletions.
	Root string `toml:"root"`

	// DebounceMs is the coalescing window in milliseconds.
	// Zero disables debouncing.
	DebounceMs int `toml:"debounce_ms"`

	// BufferSize is the event channel capacity.
	BufferSize int `toml:"buffer_size"`

	// Ignore holds gitignore-style patterns to exclude.
	Ignore []string `toml:"ignore"`

	// IgnoreHidden excludes dotfiles from watching.
	IgnoreHidden bool `toml:"ignore_hidden"`
}

// DebounceDelay returns the debounce window as a duration.
func (w WatchConfig) DebounceDelay() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// ProviderConfig describes one configured library provider.
type ProviderConfig struct {
	// ID is the stable provider identity.
	ID string `toml:"id"`

	// Name is the human-readable library name. Defaults to ID.
	Name string `toml:"name"`

	// Kind selects the provider implementation: "dir" or "manifest".
	Kind string `toml:"kind"`

	// Root is the directory a "dir" provider walks.
	Root string `toml:"root"`

	// Extensions optionally restricts a "dir" provider to matching
	// file extensions (e.g. ".go").
	Extensions []string `toml:"extensions"`

	// Manifest is the TOML file listing for a "manifest" provider.
	Manifest string `toml:"manifest"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Watch: WatchConfig{
			Root:         ".",
			DebounceMs:   100,
			BufferSize:   100,
			IgnoreHidden: true,
		},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults, not an error, matching a project that has not been
// configured yet.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes TOML data into a Config, applying defaults for unset
// watch fields.
func Parse(source string, data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ParseError{Path: source, Err: err}
	}

	if cfg.Watch.Root == "" {
		cfg.Watch.Root = "."
	}
	if cfg.Watch.BufferSize <= 0 {
		cfg.Watch.BufferSize = 100
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Name == "" {
			cfg.Providers[i].Name = cfg.Providers[i].ID
		}
	}
	return cfg, nil
}

// Validate checks provider entries for completeness and uniqueness.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return ErrNoProviders
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %q: id is required", p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true

		switch p.Kind {
		case KindDir:
			if p.Root == "" {
				return fmt.Errorf("provider %s: %w", p.ID, ErrMissingRoot)
			}
		case KindManifest:
			if p.Manifest == "" {
				return fmt.Errorf("provider %s: %w", p.ID, ErrMissingManifest)
			}
		default:
			return fmt.Errorf("provider %s: %w: %q", p.ID, ErrUnknownKind, p.Kind)
		}
	}
	return nil
}
