// Package store persists the conversation, per-message durations and the
// initialization state in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
)

const initStateKey = "init_state"

// SQLiteStore is the client-local conversation store. It is owned by a
// single client process; no cross-process locking is attempted.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the store at the given DSN.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			position INTEGER PRIMARY KEY,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			parts TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS durations (
			message_id TEXT PRIMARY KEY,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Save replaces the stored conversation and duration map atomically.
func (s *SQLiteStore) Save(conversation domain.Conversation, durations domain.DurationMap) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM durations`); err != nil {
		return fmt.Errorf("failed to clear durations: %w", err)
	}

	for i, msg := range conversation {
		parts, err := json.Marshal(msg.Parts)
		if err != nil {
			return fmt.Errorf("failed to marshal parts for %s: %w", msg.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (position, message_id, role, parts) VALUES (?, ?, ?, ?)`,
			i, msg.ID, string(msg.Role), string(parts),
		); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
		}
	}
	for id, ms := range durations {
		if _, err := tx.Exec(
			`INSERT INTO durations (message_id, duration_ms) VALUES (?, ?)`,
			id, ms,
		); err != nil {
			return fmt.Errorf("failed to insert duration for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Load reads the stored conversation, durations and init state. Malformed
// or absent data yields empty state with the underlying error for logging;
// callers treat every failure as an empty store.
func (s *SQLiteStore) Load() (domain.Conversation, domain.DurationMap, domain.InitState, error) {
	rows, err := s.db.Query(`SELECT message_id, role, parts FROM messages ORDER BY position`)
	if err != nil {
		return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var conversation domain.Conversation
	for rows.Next() {
		var id, role, partsJSON string
		if err := rows.Scan(&id, &role, &partsJSON); err != nil {
			return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to scan message: %w", err)
		}
		var parts []domain.Part
		if err := json.Unmarshal([]byte(partsJSON), &parts); err != nil {
			return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("malformed parts for %s: %w", id, err)
		}
		conversation = append(conversation, domain.Message{
			ID:    id,
			Role:  domain.Role(role),
			Parts: parts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to read messages: %w", err)
	}

	durations := domain.DurationMap{}
	dRows, err := s.db.Query(`SELECT message_id, duration_ms FROM durations`)
	if err != nil {
		return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to query durations: %w", err)
	}
	defer dRows.Close()
	for dRows.Next() {
		var id string
		var ms int64
		if err := dRows.Scan(&id, &ms); err != nil {
			return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to scan duration: %w", err)
		}
		durations[id] = ms
	}
	if err := dRows.Err(); err != nil {
		return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to read durations: %w", err)
	}

	initState := domain.InitStateEmpty
	var value string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, initStateKey).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		// First run.
	case err != nil:
		return nil, domain.DurationMap{}, domain.InitStateEmpty, fmt.Errorf("failed to read init state: %w", err)
	default:
		initState = domain.InitState(value)
	}

	return conversation, durations, initState, nil
}

// SetInitState records the conversation initialization state.
func (s *SQLiteStore) SetInitState(state domain.InitState) error {
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		initStateKey, string(state),
	)
	if err != nil {
		return fmt.Errorf("failed to set init state: %w", err)
	}
	return nil
}

// Clear empties messages, durations and init state in one transaction.
func (s *SQLiteStore) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM messages`,
		`DELETE FROM durations`,
		`DELETE FROM meta`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
