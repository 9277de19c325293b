/*
Package moderation implements the host-scoped block list consulted on every join attempt.

Entries are keyed by the identity of the host that created them (its stable user or
device ID) and by a normalized username. Entries outlive rooms: a host that blocks
a user keeps that block for every room it hosts afterwards.
*/
package moderation

import (
	"context"
	"strings"
	"time"
)

// BlockEntry is one block-list record.
type BlockEntry struct {
	Username  string    `json:"username"`
	BlockedBy string    `json:"blockedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistent block list. Implementations must allow concurrent
// reads while a write is in progress.
type Store interface {
	// Block records that hostID blocked username. Blocking twice is not an error.
	Block(ctx context.Context, hostID, username string) error

	// Unblock removes the entry. Removing a missing entry is not an error.
	Unblock(ctx context.Context, hostID, username string) error

	// IsBlocked reports whether any of hostIDs has blocked username.
	IsBlocked(ctx context.Context, username string, hostIDs ...string) (bool, error)

	// List returns the entries created by hostID, oldest first.
	List(ctx context.Context, hostID string) ([]BlockEntry, error)

	// Close releases the underlying resources.
	Close() error
}

// NormalizeUsername is the block-list key for a display name: trimmed and case-folded,
// so "Bob" and " bob " are the same identity.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
