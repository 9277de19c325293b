package moderation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"listentogether/internal/app/db"
)

// PostgresStore keeps the block list in PostgreSQL, shared by every server instance.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to dsn, applying migrations.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	pool, err := db.NewPool(dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Block(ctx context.Context, hostID, username string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocked_users (blocked_by, username) VALUES ($1, $2)`,
		hostID, NormalizeUsername(username),
	)
	if err != nil && !db.IsUniqueViolation(err) {
		return fmt.Errorf("block %q: %w", username, err)
	}
	return nil
}

func (s *PostgresStore) Unblock(ctx context.Context, hostID, username string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM blocked_users WHERE blocked_by = $1 AND username = $2`,
		hostID, NormalizeUsername(username),
	); err != nil {
		return fmt.Errorf("unblock %q: %w", username, err)
	}
	return nil
}

func (s *PostgresStore) IsBlocked(ctx context.Context, username string, hostIDs ...string) (bool, error) {
	if len(hostIDs) == 0 {
		return false, nil
	}

	var blocked bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocked_users WHERE username = $1 AND blocked_by = ANY($2))`,
		NormalizeUsername(username), hostIDs,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block for %q: %w", username, err)
	}
	return blocked, nil
}

func (s *PostgresStore) List(ctx context.Context, hostID string) ([]BlockEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, blocked_by, created_at FROM blocked_users WHERE blocked_by = $1 ORDER BY created_at, username`,
		hostID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (BlockEntry, error) {
		var e BlockEntry
		err := row.Scan(&e.Username, &e.BlockedBy, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan blocks: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
