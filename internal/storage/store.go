package storage

import (
	"context"
	"errors"
)

// SnapshotStore is a single named slot holding the serialized cart.
// Save always overwrites the whole slot.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
	Close() error
}

var ErrSnapshotNotFound = errors.New("snapshot not found")
