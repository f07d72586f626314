package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrAuthFailed indicates a credential was rejected (HTTP 401). Fatal:
	// the whole run aborts before any mutating work.
	ErrAuthFailed = errors.New("authentication credential is invalid")

	// ErrServerOffline indicates the media server is unreachable
	ErrServerOffline = errors.New("media server is unreachable")

	// ErrNoUsers indicates no usable (non-disabled) account exists on the media server
	ErrNoUsers = errors.New("no usable media server user found")

	// ErrSnapshotMissing indicates the offline collection snapshot file is absent
	ErrSnapshotMissing = errors.New("collection snapshot file not found")
)
