// Package notify carries the discrete lifecycle signals the library
// cache reacts to: build-sync start/finish and version-control sync.
//
// It is a deliberately small synchronous hub. The sync driver and the
// VCS integration publish; the cache subscribes. Topics use dot
// notation so related signals group under a common prefix.
package notify

import "github.com/tmcrae/synthlib/internal/library"

// Topic identifies a notification kind.
type Topic string

// Lifecycle topics.
const (
	// TopicSyncStarted is published when a project resynchronization
	// begins.
	TopicSyncStarted Topic = "sync.started"

	// TopicSyncFinished is published when a project resynchronization
	// completes, successfully or not.
	TopicSyncFinished Topic = "sync.finished"

	// TopicVcsSynced is published after a version-control
	// synchronization. It carries no payload.
	TopicVcsSynced Topic = "vcs.synced"
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// SyncMode describes what kind of resynchronization ran.
type SyncMode int

const (
	// SyncModeStartup is the initial sync after opening the project,
	// using previously persisted metadata if available.
	SyncModeStartup SyncMode = iota

	// SyncModeIncremental re-syncs a subset of targets.
	SyncModeIncremental

	// SyncModeFull recomputes the whole project.
	SyncModeFull
)

// String returns a human-readable representation of the mode.
func (m SyncMode) String() string {
	switch m {
	case SyncModeStartup:
		return "startup"
	case SyncModeIncremental:
		return "incremental"
	case SyncModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// SyncResult describes how a resynchronization ended.
type SyncResult int

const (
	// SyncSuccess means the sync completed and its metadata is valid.
	SyncSuccess SyncResult = iota

	// SyncFailure means the sync failed; metadata may be stale or nil.
	SyncFailure

	// SyncCancelled means the sync was cancelled before completion.
	SyncCancelled
)

// String returns a human-readable representation of the result.
func (r SyncResult) String() string {
	switch r {
	case SyncSuccess:
		return "success"
	case SyncFailure:
		return "failure"
	case SyncCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SyncStarted is the payload for TopicSyncStarted.
type SyncStarted struct {
	Mode SyncMode
}

// SyncFinished is the payload for TopicSyncFinished.
type SyncFinished struct {
	Mode   SyncMode
	Result SyncResult

	// Metadata is the freshly resolved project metadata, nil when the
	// sync produced none (failure, or no persisted state on startup).
	Metadata *library.Metadata
}
