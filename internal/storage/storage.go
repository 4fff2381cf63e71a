package storage

import (
	"context"
	"errors"

	"github.com/mselser95/coinflip/pkg/types"
)

// ErrNotFound is returned when no wager exists at an identity.
var ErrNotFound = errors.New("wager not found")

// Store persists wager records.
type Store interface {
	// SaveWager inserts a wager or updates its settlement fields.
	SaveWager(ctx context.Context, w *types.Wager) error

	// GetWager returns the wager at id or ErrNotFound.
	GetWager(ctx context.Context, id string) (*types.Wager, error)

	// LoadPending returns all pending wagers ordered by sequence.
	LoadPending(ctx context.Context) ([]*types.Wager, error)

	// MaxSequence returns the highest sequence stored, 0 when empty.
	MaxSequence(ctx context.Context) (uint64, error)

	// Close closes the storage connection.
	Close() error
}
