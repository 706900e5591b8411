package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// Schema holds one row per persisted collection; body is the full JSON array.
const Schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== BanStore implementation ====

// LoadBans returns the persisted ban list.
func (s *SQLiteStore) LoadBans(ctx context.Context) ([]store.Ban, error) {
	var bans []store.Ban
	if err := s.load(ctx, store.CollectionBans, &bans); err != nil {
		return nil, err
	}
	return bans, nil
}

// SaveBans rewrites the ban collection.
func (s *SQLiteStore) SaveBans(ctx context.Context, bans []store.Ban) error {
	if bans == nil {
		bans = []store.Ban{}
	}
	return s.save(ctx, store.CollectionBans, bans)
}

// ==== WordStore implementation ====

// LoadBannedWords returns the persisted banned-word list.
func (s *SQLiteStore) LoadBannedWords(ctx context.Context) ([]string, error) {
	var words []string
	if err := s.load(ctx, store.CollectionBannedWords, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// SaveBannedWords rewrites the banned-word collection.
func (s *SQLiteStore) SaveBannedWords(ctx context.Context, words []string) error {
	if words == nil {
		words = []string{}
	}
	return s.save(ctx, store.CollectionBannedWords, words)
}

// ==== HistoryStore implementation ====

// LoadMessages returns the persisted history.
func (s *SQLiteStore) LoadMessages(ctx context.Context) ([]store.Message, error) {
	var messages []store.Message
	if err := s.load(ctx, store.CollectionMessages, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SaveMessages rewrites the history collection.
func (s *SQLiteStore) SaveMessages(ctx context.Context, messages []store.Message) error {
	if messages == nil {
		messages = []store.Message{}
	}
	return s.save(ctx, store.CollectionMessages, messages)
}

func (s *SQLiteStore) load(ctx context.Context, name string, dst any) error {
	query := `SELECT body FROM collections WHERE name = ?`

	var body string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("query %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	query := `
		INSERT INTO collections (name, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, name, string(body)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
