package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrChannelNotFound indicates the channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrParentNotFound indicates the referenced thread root does not exist.
	ErrParentNotFound = errors.New("parent message not found")
)

// DB wraps the SQLite database connection
type DB struct {
	conn      *sql.DB // Read connection pool
	writeConn *sql.DB // Dedicated write connection (1 connection)
}

// Open opens a connection to the SQLite database at the given path
// and initializes the schema if needed
func Open(path string) (*DB, error) {
	conn, err := openConn(path, 25)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single write connection, no pooling. WAL allows the readers to
	// proceed while a transaction is in flight.
	writeConn, err := openConn(path, 1)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open write connection: %w", err)
	}

	db := &DB{
		conn:      conn,
		writeConn: writeConn,
	}

	if err := db.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func openConn(path string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(maxConns)
	if maxConns > 1 {
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	} else {
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return conn, nil
}

// Close closes the database connections
func (db *DB) Close() error {
	db.writeConn.Close()
	return db.conn.Close()
}

// initSchema creates all tables and indexes if they don't exist
func (db *DB) initSchema() error {
	schema := `
-- User table (rows owned by the account service; the engine reads them for
-- auth resolution and mention lookup)
CREATE TABLE IF NOT EXISTS User (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

-- Channel table
CREATE TABLE IF NOT EXISTS Channel (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	channel_type TEXT NOT NULL DEFAULT 'public',
	created_at INTEGER NOT NULL
);

-- Message table
CREATE TABLE IF NOT EXISTS Message (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	parent_id TEXT,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (channel_id) REFERENCES Channel(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES User(id),
	FOREIGN KEY (parent_id) REFERENCES Message(id) ON DELETE CASCADE
);

-- Attachment table (rows created by the upload service before the message
-- exists; message_id is filled in when the message referencing them lands)
CREATE TABLE IF NOT EXISTS Attachment (
	id TEXT PRIMARY KEY,
	message_id TEXT,
	filename TEXT NOT NULL,
	url TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (message_id) REFERENCES Message(id) ON DELETE SET NULL
);

-- Notification table
CREATE TABLE IF NOT EXISTS Notification (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL,
	kind TEXT NOT NULL,
	is_read INTEGER NOT NULL DEFAULT 0,
	related_id TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES User(id) ON DELETE CASCADE
);

-- Reaction table; the triple is the identity, re-adding is a no-op
CREATE TABLE IF NOT EXISTS Reaction (
	message_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	emoji TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (message_id, user_id, emoji),
	FOREIGN KEY (message_id) REFERENCES Message(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES User(id) ON DELETE CASCADE
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_messages_channel ON Message(channel_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_parent ON Message(parent_id) WHERE parent_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_attachments_message ON Attachment(message_id) WHERE message_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_notifications_user ON Notification(user_id, created_at DESC);
`

	_, err := db.conn.Exec(schema)
	return err
}

// User represents a user record
type User struct {
	ID        uuid.UUID
	Email     string
	Username  string
	CreatedAt int64 // Unix timestamp in milliseconds
}

// Channel represents a channel record
type Channel struct {
	ID          uuid.UUID
	Name        string
	ChannelType string // "public", "private", "dm", "voice"
	CreatedAt   int64
}

// Message represents a message record
type Message struct {
	ID        uuid.UUID
	ChannelID uuid.UUID
	UserID    uuid.UUID
	ParentID  *uuid.UUID
	Content   string
	CreatedAt int64 // Unix timestamp in milliseconds

	// Loaded relationships (populated by GetMessage)
	Author      *User
	Attachments []*Attachment
}

// Attachment represents an uploaded file referenced by a message
type Attachment struct {
	ID        uuid.UUID
	MessageID *uuid.UUID
	Filename  string
	URL       string
	CreatedAt int64
}

// Notification kinds
const (
	NotificationMention = "mention"
	NotificationReply   = "reply"
	NotificationSystem  = "system"
)

// Notification represents a notification record
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Content   string
	Kind      string // "mention", "reply", "system"
	IsRead    bool
	RelatedID *uuid.UUID
	CreatedAt int64
}

// Reaction represents an emoji reaction on a message
type Reaction struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
	Emoji     string
	CreatedAt int64
}

// nowMillis returns current time as Unix timestamp in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func nullableID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: id.String()}
}

func parseNullableID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
