// Package store provides local persistence for the prompt handoff and
// chat transcripts.
package store

import (
	"context"
	"errors"

	"github.com/supreme-gg-gg/multiflex/internal/domain"
)

// ErrNoPending is returned by TakePending when no prompt was handed off.
var ErrNoPending = errors.New("no pending prompt")

// Repository defines the persistence interface.
type Repository interface {
	// SavePending stores a prompt for the next session start, replacing
	// any earlier one for the same user.
	SavePending(ctx context.Context, req *domain.PendingRequest) error

	// TakePending returns the pending prompt for a user and clears it in
	// the same transaction. Returns ErrNoPending when none exists.
	TakePending(ctx context.Context, userID string) (*domain.PendingRequest, error)

	// ClearPending removes any pending prompt for a user.
	ClearPending(ctx context.Context, userID string) error

	// AppendEntry persists one transcript entry for a session.
	AppendEntry(ctx context.Context, sessionID, userID string, entry domain.ChatEntry) error

	// ListEntries returns the persisted transcript for a session in
	// insertion order.
	ListEntries(ctx context.Context, sessionID string) ([]domain.ChatEntry, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
