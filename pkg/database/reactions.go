package database

import (
	"github.com/google/uuid"
)

// AddReaction persists an emoji reaction. If the (message, user, emoji)
// triple already exists the call is a no-op: it returns created=false and no
// reaction, so the caller knows not to broadcast.
func (db *DB) AddReaction(messageID, userID uuid.UUID, emoji string) (*Reaction, bool, error) {
	now := nowMillis()

	res, err := db.writeConn.Exec(`
		INSERT OR IGNORE INTO Reaction (message_id, user_id, emoji, created_at)
		VALUES (?, ?, ?, ?)
	`, messageID.String(), userID.String(), emoji, now)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		return nil, false, nil
	}

	return &Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: now,
	}, true, nil
}

// RemoveReaction deletes a reaction triple. A missing triple is a no-op
// (removed=false), not an error, so retries are harmless.
func (db *DB) RemoveReaction(messageID, userID uuid.UUID, emoji string) (bool, error) {
	res, err := db.writeConn.Exec(`
		DELETE FROM Reaction WHERE message_id = ? AND user_id = ? AND emoji = ?
	`, messageID.String(), userID.String(), emoji)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListReactions returns all reactions on a message.
func (db *DB) ListReactions(messageID uuid.UUID) ([]*Reaction, error) {
	rows, err := db.conn.Query(`
		SELECT message_id, user_id, emoji, created_at
		FROM Reaction
		WHERE message_id = ?
		ORDER BY created_at, emoji
	`, messageID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := make([]*Reaction, 0)
	for rows.Next() {
		var r Reaction
		var rawMsgID, rawUserID string
		if err := rows.Scan(&rawMsgID, &rawUserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		var parseErr error
		if r.MessageID, parseErr = uuid.Parse(rawMsgID); parseErr != nil {
			return nil, parseErr
		}
		if r.UserID, parseErr = uuid.Parse(rawUserID); parseErr != nil {
			return nil, parseErr
		}
		reactions = append(reactions, &r)
	}

	return reactions, rows.Err()
}
