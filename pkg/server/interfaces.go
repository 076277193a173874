package server

import (
	"github.com/google/uuid"

	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
)

// Store defines the persistence operations the engine uses. The abstraction
// allows the pipelines to be tested against an in-memory implementation.
type Store interface {
	// Identity (owned by the account service, read here)
	GetUserByUsername(username string) (*database.User, error)

	// Message ingestion
	CreateMessage(p database.CreateMessageParams) (uuid.UUID, []*database.Notification, error)
	GetMessage(id uuid.UUID) (*database.Message, error)

	// Reactions
	AddReaction(messageID, userID uuid.UUID, emoji string) (*database.Reaction, bool, error)
	RemoveReaction(messageID, userID uuid.UUID, emoji string) (bool, error)

	// Close the store
	Close() error
}
