package types

import (
	"context"
	"errors"
)

// Store persists board snapshots. Save receives only the latest snapshot a
// caller wants durable; Load returns the last saved snapshot, or nil when the
// store holds none.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Backend is a Store with an explicit lifecycle. Attach connects using
// config; Detach releases resources and is idempotent.
type Backend interface {
	Store

	// Attach connects the backend described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. After Detach, Save and Load return
	// ErrBackendDetached.
	Detach() error
}

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)
