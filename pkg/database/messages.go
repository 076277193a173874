package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateMessageParams is the input to CreateMessage. Mentions carries the
// deduplicated @identifiers already extracted from the content; resolution
// against actual users happens inside the transaction.
type CreateMessageParams struct {
	ChannelID     uuid.UUID
	AuthorID      uuid.UUID
	Content       string
	ParentID      *uuid.UUID
	AttachmentIDs []uuid.UUID
	Mentions      []string
}

// CreateMessage persists a message, links its attachments, and synthesizes
// mention/reply notifications, all in one transaction. On any failure the
// whole unit rolls back and nothing persists. Returns the new message id and
// the notifications that were created alongside it.
//
// A mention and a reply notification for the same recipient are both created;
// the original system never deduplicated them and clients rely on seeing both.
func (db *DB) CreateMessage(p CreateMessageParams) (uuid.UUID, []*Notification, error) {
	tx, err := db.writeConn.Begin()
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer tx.Rollback()

	var authorUsername string
	err = tx.QueryRow(`SELECT username FROM User WHERE id = ?`, p.AuthorID.String()).Scan(&authorUsername)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil, ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, nil, err
	}

	var one int
	err = tx.QueryRow(`SELECT 1 FROM Channel WHERE id = ?`, p.ChannelID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil, ErrChannelNotFound
	}
	if err != nil {
		return uuid.Nil, nil, err
	}

	// Resolve the thread root up front; a reply notification is only owed
	// when the parent was written by someone else.
	var parentAuthorID *uuid.UUID
	if p.ParentID != nil {
		var rawParentAuthor string
		err = tx.QueryRow(`SELECT user_id FROM Message WHERE id = ?`, p.ParentID.String()).Scan(&rawParentAuthor)
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil, ErrParentNotFound
		}
		if err != nil {
			return uuid.Nil, nil, err
		}
		parsed, err := uuid.Parse(rawParentAuthor)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("corrupt parent author id: %w", err)
		}
		parentAuthorID = &parsed
	}

	messageID := uuid.New()
	now := nowMillis()

	_, err = tx.Exec(`
		INSERT INTO Message (id, channel_id, user_id, parent_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, messageID.String(), p.ChannelID.String(), p.AuthorID.String(), nullableID(p.ParentID), p.Content, now)
	if err != nil {
		return uuid.Nil, nil, err
	}

	// Claim the referenced attachments. Unknown ids and already-claimed rows
	// are skipped; an upload that is never linked stays orphaned.
	for _, attID := range p.AttachmentIDs {
		_, err = tx.Exec(`
			UPDATE Attachment SET message_id = ? WHERE id = ? AND message_id IS NULL
		`, messageID.String(), attID.String())
		if err != nil {
			return uuid.Nil, nil, err
		}
	}

	var notifications []*Notification

	for _, mention := range p.Mentions {
		var rawID string
		err = tx.QueryRow(`SELECT id FROM User WHERE username = ?`, mention).Scan(&rawID)
		if errors.Is(err, sql.ErrNoRows) {
			continue // not a real user, just an @-looking token
		}
		if err != nil {
			return uuid.Nil, nil, err
		}
		mentionedID, err := uuid.Parse(rawID)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("corrupt user id: %w", err)
		}
		if mentionedID == p.AuthorID {
			continue
		}

		notif, err := insertNotification(tx, mentionedID, NotificationMention,
			fmt.Sprintf("%s mentioned you", authorUsername), messageID, now)
		if err != nil {
			return uuid.Nil, nil, err
		}
		notifications = append(notifications, notif)
	}

	if parentAuthorID != nil && *parentAuthorID != p.AuthorID {
		notif, err := insertNotification(tx, *parentAuthorID, NotificationReply,
			fmt.Sprintf("%s replied to your message", authorUsername), messageID, now)
		if err != nil {
			return uuid.Nil, nil, err
		}
		notifications = append(notifications, notif)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, nil, err
	}

	return messageID, notifications, nil
}

func insertNotification(tx *sql.Tx, userID uuid.UUID, kind, content string, relatedID uuid.UUID, now int64) (*Notification, error) {
	notif := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		Kind:      kind,
		RelatedID: &relatedID,
		CreatedAt: now,
	}

	_, err := tx.Exec(`
		INSERT INTO Notification (id, user_id, content, kind, is_read, related_id, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, notif.ID.String(), userID.String(), content, kind, relatedID.String(), now)
	if err != nil {
		return nil, err
	}

	return notif, nil
}

// GetMessage returns the canonical message with its author and attachments
// loaded, the representation broadcast to channel subscribers.
func (db *DB) GetMessage(id uuid.UUID) (*Message, error) {
	row := db.conn.QueryRow(`
		SELECT m.id, m.channel_id, m.user_id, m.parent_id, m.content, m.created_at,
		       u.id, u.email, u.username, u.created_at
		FROM Message m
		JOIN User u ON u.id = m.user_id
		WHERE m.id = ?
	`, id.String())

	var msg Message
	var author User
	var rawMsgID, rawChannelID, rawUserID, rawAuthorID string
	var rawParentID sql.NullString

	err := row.Scan(&rawMsgID, &rawChannelID, &rawUserID, &rawParentID, &msg.Content, &msg.CreatedAt,
		&rawAuthorID, &author.Email, &author.Username, &author.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	if msg.ID, err = uuid.Parse(rawMsgID); err != nil {
		return nil, fmt.Errorf("corrupt message id: %w", err)
	}
	if msg.ChannelID, err = uuid.Parse(rawChannelID); err != nil {
		return nil, fmt.Errorf("corrupt channel id: %w", err)
	}
	if msg.UserID, err = uuid.Parse(rawUserID); err != nil {
		return nil, fmt.Errorf("corrupt user id: %w", err)
	}
	if msg.ParentID, err = parseNullableID(rawParentID); err != nil {
		return nil, fmt.Errorf("corrupt parent id: %w", err)
	}
	if author.ID, err = uuid.Parse(rawAuthorID); err != nil {
		return nil, fmt.Errorf("corrupt author id: %w", err)
	}
	msg.Author = &author

	msg.Attachments, err = db.listAttachments(msg.ID)
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

func (db *DB) listAttachments(messageID uuid.UUID) ([]*Attachment, error) {
	rows, err := db.conn.Query(`
		SELECT id, message_id, filename, url, created_at
		FROM Attachment
		WHERE message_id = ?
		ORDER BY created_at, id
	`, messageID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]*Attachment, 0)
	for rows.Next() {
		var att Attachment
		var rawID string
		var rawMsgID sql.NullString
		if err := rows.Scan(&rawID, &rawMsgID, &att.Filename, &att.URL, &att.CreatedAt); err != nil {
			return nil, err
		}
		if att.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("corrupt attachment id: %w", err)
		}
		if att.MessageID, err = parseNullableID(rawMsgID); err != nil {
			return nil, fmt.Errorf("corrupt attachment message id: %w", err)
		}
		attachments = append(attachments, &att)
	}

	return attachments, rows.Err()
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(userID uuid.UUID) ([]*Notification, error) {
	rows, err := db.conn.Query(`
		SELECT id, user_id, content, kind, is_read, related_id, created_at
		FROM Notification
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		var notif Notification
		var rawID, rawUserID string
		var rawRelatedID sql.NullString
		if err := rows.Scan(&rawID, &rawUserID, &notif.Content, &notif.Kind, &notif.IsRead, &rawRelatedID, &notif.CreatedAt); err != nil {
			return nil, err
		}
		if notif.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("corrupt notification id: %w", err)
		}
		if notif.UserID, err = uuid.Parse(rawUserID); err != nil {
			return nil, fmt.Errorf("corrupt notification user id: %w", err)
		}
		if notif.RelatedID, err = parseNullableID(rawRelatedID); err != nil {
			return nil, fmt.Errorf("corrupt notification related id: %w", err)
		}
		notifications = append(notifications, &notif)
	}

	return notifications, rows.Err()
}
