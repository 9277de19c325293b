package moderation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"listentogether/internal/app/db"
)

// SQLiteStore keeps the block list in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the database at path, applying migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: sqlDB}, nil
}

func (s *SQLiteStore) Block(ctx context.Context, hostID, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocked_users (blocked_by, username, created_at) VALUES (?, ?, ?)`,
		hostID, NormalizeUsername(username), time.Now().UTC().UnixMilli(),
	)
	if err != nil && !db.IsUniqueViolation(err) {
		return fmt.Errorf("block %q: %w", username, err)
	}
	return nil
}

func (s *SQLiteStore) Unblock(ctx context.Context, hostID, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM blocked_users WHERE blocked_by = ? AND username = ?`,
		hostID, NormalizeUsername(username),
	); err != nil {
		return fmt.Errorf("unblock %q: %w", username, err)
	}
	return nil
}

func (s *SQLiteStore) IsBlocked(ctx context.Context, username string, hostIDs ...string) (bool, error) {
	if len(hostIDs) == 0 {
		return false, nil
	}

	args := make([]any, 0, len(hostIDs)+1)
	args = append(args, NormalizeUsername(username))
	for _, id := range hostIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM blocked_users WHERE username = ? AND blocked_by IN (%s))`,
		strings.TrimSuffix(strings.Repeat("?,", len(hostIDs)), ","),
	)

	var blocked bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&blocked); err != nil {
		return false, fmt.Errorf("check block for %q: %w", username, err)
	}
	return blocked, nil
}

func (s *SQLiteStore) List(ctx context.Context, hostID string) ([]BlockEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, blocked_by, created_at FROM blocked_users WHERE blocked_by = ? ORDER BY created_at, username`,
		hostID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockEntry
	for rows.Next() {
		var (
			e       BlockEntry
			created int64
		)
		if err := rows.Scan(&e.Username, &e.BlockedBy, &created); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
