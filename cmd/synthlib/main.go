// Package main is the entry point for the synthlib daemon.
//
// The daemon keeps a synthetic-library snapshot for one workspace:
// it rebuilds the snapshot on startup and on SIGUSR1 (resync), feeds
// file deletions from the watcher into it, and treats SIGHUP as the
// version-control sync signal that restores missing roots.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tmcrae/synthlib/internal/cache"
	"github.com/tmcrae/synthlib/internal/config"
	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/notify"
	"github.com/tmcrae/synthlib/internal/provider"
	"github.com/tmcrae/synthlib/internal/vfs"
	"github.com/tmcrae/synthlib/internal/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		rootFlag    string
		logLevel    string
		showVersion bool
	)
	pflag.StringVarP(&configPath, "config", "c", "synthlib.toml", "path to the configuration file")
	pflag.StringVar(&rootFlag, "root", "", "workspace root (overrides the configured watch root)")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("synthlib %s (%s)\n", version, commit)
		return 0
	}

	log := newLogger(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("loading config", "error", err)
		return 1
	}
	if rootFlag != "" {
		cfg.Watch.Root = rootFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		return 1
	}

	filesystem := vfs.NewOSFS()
	registry, err := provider.FromConfig(cfg, filesystem)
	if err != nil {
		log.Error("building providers", "error", err)
		return 1
	}

	manager := cache.NewManager(registry, filesystem, cache.WithLogger(log))
	defer manager.Close()

	hub := notify.NewHub()
	if err := manager.Attach(hub); err != nil {
		log.Error("attaching manager", "error", err)
		return 1
	}

	root, err := filesystem.Abs(cfg.Watch.Root)
	if err != nil {
		log.Error("resolving watch root", "error", err)
		return 1
	}

	var w watcher.Watcher
	fsw, err := watcher.NewFSWatcher(
		watcher.WithBufferSize(cfg.Watch.BufferSize),
		watcher.WithIgnorePatterns(cfg.Watch.Ignore),
		watcher.WithIgnoreHidden(cfg.Watch.IgnoreHidden),
	)
	if err != nil {
		log.Error("creating watcher", "error", err)
		return 1
	}
	w = fsw
	if d := cfg.Watch.DebounceDelay(); d > 0 {
		w = watcher.NewDebounced(fsw, d)
	}
	defer w.Close()

	if err := w.WatchTree(root); err != nil {
		log.Error("watching workspace", "root", root, "error", err)
		return 1
	}
	log.Info("watching workspace", "root", root, "providers", registry.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx, w)

	// Startup sync: the daemon plays the sync driver's part itself.
	generation := uint64(1)
	resync := func(mode notify.SyncMode) {
		hub.Publish(notify.TopicSyncStarted, notify.SyncStarted{Mode: mode})
		hub.Publish(notify.TopicSyncFinished, notify.SyncFinished{
			Mode:   mode,
			Result: notify.SyncSuccess,
			Metadata: &library.Metadata{
				WorkspaceRoot:  root,
				SyncGeneration: generation,
			},
		})
		generation++
	}
	resync(notify.SyncModeStartup)

	// The startup path only rebuilds for SyncModeStartup; later
	// resyncs drive the rebuild explicitly like the sync engine would.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	for sig := range signals {
		switch sig {
		case syscall.SIGHUP:
			log.Info("vcs sync signal received")
			hub.Publish(notify.TopicVcsSynced, nil)
		case syscall.SIGUSR1:
			log.Info("resync signal received")
			manager.BeginSync()
			manager.Rebuild(ctx, library.Metadata{
				WorkspaceRoot:  root,
				SyncGeneration: generation,
			})
			manager.FinishSync(ctx, notify.SyncModeFull, notify.SyncSuccess, nil)
			generation++
		default:
			log.Info("shutting down", "signal", sig.String())
			stats := manager.Stats()
			log.Info("final stats",
				"rebuilds", stats.Rebuilds,
				"libraries", stats.Libraries,
				"files_removed", stats.FilesRemoved,
				"files_restored", stats.FilesRestored)
			return 0
		}
	}
	return 0
}

// newLogger builds a text slog logger at the requested level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
