package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const createSettingsTable = `CREATE TABLE IF NOT EXISTS sessions (
	name    TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`

// SQLiteProvider persists the session in a local SQLite file
type SQLiteProvider struct {
	db   *sql.DB
	name string
}

// OpenSQLiteProvider opens (creating if needed) the settings database at path.
func OpenSQLiteProvider(ctx context.Context, path, name string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer is enough for a single operator
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createSettingsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteProvider{db: db, name: name}, nil
}

func (p *SQLiteProvider) Load(ctx context.Context) (Session, error) {
	var payload string
	err := p.db.QueryRowContext(ctx, "SELECT payload FROM sessions WHERE name = ?", p.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, nil
	} else if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (p *SQLiteProvider) Save(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		"INSERT INTO sessions (name, payload) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET payload = excluded.payload",
		p.name, string(raw))
	return err
}

func (p *SQLiteProvider) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM sessions WHERE name = ?", p.name)
	return err
}

// Close closes the database
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
