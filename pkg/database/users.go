package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateUser inserts a user row. Account management belongs to the REST
// service; this exists for seeding and tests.
func (db *DB) CreateUser(email, username string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		CreatedAt: nowMillis(),
	}

	_, err := db.writeConn.Exec(`
		INSERT INTO User (id, email, username, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID.String(), user.Email, user.Username, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUserByUsername returns the user with the given username
func (db *DB) GetUserByUsername(username string) (*User, error) {
	row := db.conn.QueryRow(`
		SELECT id, email, username, created_at FROM User WHERE username = ?
	`, username)
	return scanUser(row)
}

// GetUserByID returns the user with the given id
func (db *DB) GetUserByID(id uuid.UUID) (*User, error) {
	row := db.conn.QueryRow(`
		SELECT id, email, username, created_at FROM User WHERE id = ?
	`, id.String())
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var rawID string
	err := row.Scan(&rawID, &user.Email, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id: %w", err)
	}
	return &user, nil
}

// CreateChannel inserts a channel row (seeding and tests).
func (db *DB) CreateChannel(name, channelType string) (*Channel, error) {
	ch := &Channel{
		ID:          uuid.New(),
		Name:        name,
		ChannelType: channelType,
		CreatedAt:   nowMillis(),
	}

	_, err := db.writeConn.Exec(`
		INSERT INTO Channel (id, name, channel_type, created_at)
		VALUES (?, ?, ?, ?)
	`, ch.ID.String(), ch.Name, ch.ChannelType, ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return ch, nil
}

// ChannelExists checks if a channel exists
func (db *DB) ChannelExists(id uuid.UUID) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM Channel WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAttachment inserts an unlinked attachment row, as the upload service
// does before the referencing message exists.
func (db *DB) CreateAttachment(filename, url string) (*Attachment, error) {
	att := &Attachment{
		ID:        uuid.New(),
		Filename:  filename,
		URL:       url,
		CreatedAt: nowMillis(),
	}

	_, err := db.writeConn.Exec(`
		INSERT INTO Attachment (id, message_id, filename, url, created_at)
		VALUES (?, NULL, ?, ?, ?)
	`, att.ID.String(), att.Filename, att.URL, att.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}

	return att, nil
}
