package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSlot is used when no slot name is given.
const DefaultSlot = "token"

//go:embed schema.sql
var schemaSQL string

// Store keeps token slots in a shared Postgres table, for terminals that
// hand one session between machines.
type Store struct {
	pool *pgxpool.Pool
	slot string
}

// NewStore connects a small pool to databaseURL. The connection is lazy;
// call Ping to fail fast.
func NewStore(ctx context.Context, databaseURL, slot string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres: database url is empty")
	}

	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// One CLI process never needs more than a couple of connections.
	pcfg.MaxConns = 2
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if slot == "" {
		slot = DefaultSlot
	}

	return &Store{pool: pool, slot: slot}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the token table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) Get(ctx context.Context) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM hms_token_slots WHERE slot = $1`, s.slot,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", hmssdk.ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) Set(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hms_token_slots (slot, token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (slot) DO UPDATE SET
			token = EXCLUDED.token,
			updated_at = EXCLUDED.updated_at`,
		s.slot, token,
	)
	return err
}

func (s *Store) Remove(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM hms_token_slots WHERE slot = $1`, s.slot)
	return err
}
