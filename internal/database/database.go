package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rama-kairi/minios/internal/history"
)

// DB is the optional audit journal of logins and typed commands
type DB struct {
	conn *sql.DB
	path string
}

// SessionRecord represents a login stored in the journal
type SessionRecord struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CommandCount int        `json:"command_count"`
}

// NewDB creates a new database connection
func NewDB(dataDir string) (*DB, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "minios.db")

	conn, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single foreground loop writes; one connection is enough
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{
		conn: conn,
		path: dbPath,
	}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates the database schema
func (db *DB) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		username TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		line TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username);
	CREATE INDEX IF NOT EXISTS idx_commands_session_id ON commands(session_id);
	CREATE INDEX IF NOT EXISTS idx_commands_timestamp ON commands(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Path returns the database file
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the connection is usable
func (db *DB) HealthCheck() error {
	return db.conn.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Session operations

// StartSession records a successful login
func (db *DB) StartSession(sessionID, username string) error {
	query := `INSERT INTO sessions (id, username, started_at) VALUES (?, ?, ?)`

	if _, err := db.conn.Exec(query, sessionID, username, time.Now()); err != nil {
		return fmt.Errorf("failed to start session %s: %w", sessionID, err)
	}
	return nil
}

// EndSession stamps the logout time of a session
func (db *DB) EndSession(sessionID string) error {
	result, err := db.conn.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	return nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(sessionID string) (*SessionRecord, error) {
	query := `
	SELECT s.id, s.username, s.started_at, s.ended_at,
		(SELECT COUNT(*) FROM commands c WHERE c.session_id = s.id)
	FROM sessions s WHERE s.id = ?
	`

	var session SessionRecord
	var endedAt sql.NullTime

	err := db.conn.QueryRow(query, sessionID).Scan(&session.ID, &session.Username,
		&session.StartedAt, &endedAt, &session.CommandCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, err
	}

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return &session, nil
}

// Command operations

// RecordCommand stores a history entry. It satisfies history.Sink.
func (db *DB) RecordCommand(entry history.Entry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("history entry %d has no session", entry.Sequence)
	}

	query := `
	INSERT INTO commands (id, session_id, username, sequence, line, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query, uuid.New().String(), entry.SessionID, entry.User,
		entry.Sequence, entry.Text, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Statistics

// Stats returns totals across the journal
func (db *DB) Stats() (map[string]interface{}, error) {
	var sessions, users, commands int

	if err := db.conn.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT username) FROM sessions`).Scan(&sessions, &users); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&commands); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_sessions": sessions,
		"distinct_users": users,
		"total_commands": commands,
	}, nil
}
