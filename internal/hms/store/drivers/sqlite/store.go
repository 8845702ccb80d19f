package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	_ "modernc.org/sqlite"
)

// DefaultSlot is used when no slot name is given.
const DefaultSlot = "token"

// Store keeps the token in a local SQLite file so a session survives
// restarts of the CLI, the way browser local storage survives a reload.
type Store struct {
	db   *sql.DB
	slot string
}

func NewStore(dsn, slot string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Several CLI processes may share one file.
	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	if slot == "" {
		slot = DefaultSlot
	}

	return &Store{db: db, slot: slot}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM token_slots WHERE slot = ?`, s.slot,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", hmssdk.ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_slots (slot, token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`,
		s.slot, token, time.Now().UTC(),
	)
	return err
}

func (s *Store) Remove(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM token_slots WHERE slot = ?`, s.slot)
	return err
}
