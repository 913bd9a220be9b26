// Package params implements the durable named parameter store holding the
// pipeline's OAuth credentials and fetch watermark. Values are versioned and
// never deleted, only overwritten; secret values are encrypted at rest.
package params

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

// Well-known parameter names.
const (
	// RefreshTokenParam holds the long-lived Spotify refresh token (secret).
	RefreshTokenParam = "spotify_refresh_token"

	// LastFetchedParam holds the fetch watermark as unix milliseconds (plain).
	LastFetchedParam = "spotify_last_fetched_time"
)

const stageParams = "parameter store"

const schema = `
	CREATE TABLE IF NOT EXISTS parameters (
		name        text PRIMARY KEY,
		value       bytea NOT NULL,
		secret      boolean NOT NULL DEFAULT false,
		version     integer NOT NULL DEFAULT 1,
		description text NOT NULL DEFAULT '',
		updated_at  timestamptz NOT NULL DEFAULT NOW()
	)
`

// Store is a Postgres-backed parameter store.
type Store struct {
	pool *pgxpool.Pool
	enc  *Encryptor
}

// New creates a Store, verifies the connection, and ensures the schema
// exists. The encryption key must be 64 hex characters.
func New(ctx context.Context, databaseURL, encryptionKey string) (*Store, error) {
	enc, err := NewEncryptor(encryptionKey)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring parameters table: %w", err)
	}

	return &Store{pool: pool, enc: enc}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PutOptions controls how Put stores a value.
type PutOptions struct {
	// Secret stores the value encrypted at rest.
	Secret bool

	// Overwrite replaces an existing value, bumping its version. Without it,
	// Put fails with a validation fault if the parameter already exists.
	Overwrite bool

	// Description is free-form operator documentation for the parameter.
	Description string
}

// Exists reports whether a parameter is present.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM parameters WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// Get retrieves a parameter value, decrypting secrets. Returns a not-found
// fault when the parameter is absent.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	var (
		value  []byte
		secret bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT value, secret FROM parameters WHERE name = $1`, name,
	).Scan(&value, &secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", faults.NotFound(stageParams, fmt.Errorf("parameter %q not found", name))
	}
	if err != nil {
		return "", classify(err)
	}

	if !secret {
		return string(value), nil
	}

	plaintext, err := s.enc.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("parameter %q: %w", name, err)
	}
	return plaintext, nil
}

// Put creates or updates a parameter.
func (s *Store) Put(ctx context.Context, name, value string, opts PutOptions) error {
	stored := []byte(value)
	if opts.Secret {
		var err error
		stored, err = s.enc.Encrypt(value)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}

	if !opts.Overwrite {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO parameters (name, value, secret, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, name, stored, opts.Secret, opts.Description)
		if err != nil {
			return classify(err)
		}
		if tag.RowsAffected() == 0 {
			return faults.Validation(stageParams, fmt.Errorf("parameter %q already exists", name))
		}
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO parameters (name, value, secret, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			secret = EXCLUDED.secret,
			description = EXCLUDED.description,
			version = parameters.version + 1,
			updated_at = NOW()
	`, name, stored, opts.Secret, opts.Description)
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps pgx errors into fault kinds at the integration boundary.
// Authentication and privilege failures must not be retried; everything else
// from the database is treated as a store-internal transient fault.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 28: invalid authorization; 42501: insufficient privilege.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "28" || pgErr.Code == "42501" {
			return faults.Auth(stageParams, err)
		}
	}
	return faults.Transient(stageParams, err)
}
