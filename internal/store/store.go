package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"chat-client/internal/models"
)

var ErrNoCredentials = errors.New("no stored credentials")

// Store persists the client state that must survive restarts: the bearer
// credential pair and the cached identity record. Transcripts are never
// persisted; they are reloaded from the gateway per conversation.
type Store struct {
	db *sqlx.DB
}

// Open initializes the sqlite state database and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            access_token TEXT NOT NULL,
            refresh_token TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS identity (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            user_id TEXT NOT NULL,
            username TEXT NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SaveCredentials upserts the bearer credential pair.
func (s *Store) SaveCredentials(ctx context.Context, accessToken, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (id, access_token, refresh_token, updated_at)
        VALUES (1, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET access_token=excluded.access_token, refresh_token=excluded.refresh_token, updated_at=CURRENT_TIMESTAMP`,
		accessToken, refreshToken)
	return err
}

// AccessToken returns the stored bearer token, ErrNoCredentials when absent.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.GetContext(ctx, &token, `SELECT access_token FROM credentials WHERE id=1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredentials
	}
	return token, err
}

// ClearCredentials drops the stored credential pair.
func (s *Store) ClearCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id=1`)
	return err
}

// SaveIdentity upserts the cached identity record.
func (s *Store) SaveIdentity(ctx context.Context, identity models.Identity) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO identity (id, user_id, username, updated_at)
        VALUES (1, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, username=excluded.username, updated_at=CURRENT_TIMESTAMP`,
		identity.UserID, identity.Username)
	return err
}

// Identity returns the cached identity record, if any.
func (s *Store) Identity(ctx context.Context) (models.Identity, error) {
	var identity models.Identity
	err := s.db.GetContext(ctx, &identity, `SELECT user_id, username FROM identity WHERE id=1`)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrNoCredentials
	}
	return identity, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
