package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
)

// fakeConn records every frame delivered to it. Setting failWrites simulates
// a dead transport.
type fakeConn struct {
	name string

	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	closed     bool
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name}
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write on closed transport")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, len(c.frames))
	copy(frames, c.frames)
	return frames
}

// mockStore is a simple in-memory store for pipeline tests
type mockStore struct {
	mu        sync.Mutex
	users     map[string]*database.User // by username
	channels  map[uuid.UUID]bool
	messages  map[uuid.UUID]*database.Message
	reactions map[string]bool // "msg|user|emoji"

	createErr error // injected persistence failure
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[string]*database.User),
		channels:  make(map[uuid.UUID]bool),
		messages:  make(map[uuid.UUID]*database.Message),
		reactions: make(map[string]bool),
	}
}

func (m *mockStore) addUser(username string) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &database.User{
		ID:       uuid.New(),
		Email:    username + "@example.com",
		Username: username,
	}
	m.users[username] = user
	return user
}

func (m *mockStore) addChannel() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.channels[id] = true
	return id
}

func (m *mockStore) GetUserByUsername(username string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return user, nil
}

func (m *mockStore) CreateMessage(p database.CreateMessageParams) (uuid.UUID, []*database.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return uuid.Nil, nil, m.createErr
	}
	if !m.channels[p.ChannelID] {
		return uuid.Nil, nil, database.ErrChannelNotFound
	}

	var author *database.User
	for _, u := range m.users {
		if u.ID == p.AuthorID {
			author = u
		}
	}
	if author == nil {
		return uuid.Nil, nil, database.ErrUserNotFound
	}

	var parentAuthorID *uuid.UUID
	if p.ParentID != nil {
		parent, ok := m.messages[*p.ParentID]
		if !ok {
			return uuid.Nil, nil, database.ErrParentNotFound
		}
		parentAuthorID = &parent.UserID
	}

	msg := &database.Message{
		ID:        uuid.New(),
		ChannelID: p.ChannelID,
		UserID:    p.AuthorID,
		ParentID:  p.ParentID,
		Content:   p.Content,
		Author:    author,
	}
	m.messages[msg.ID] = msg

	var notifications []*database.Notification
	for _, mention := range p.Mentions {
		mentioned, ok := m.users[mention]
		if !ok || mentioned.ID == p.AuthorID {
			continue
		}
		notifications = append(notifications, &database.Notification{
			ID:        uuid.New(),
			UserID:    mentioned.ID,
			Content:   fmt.Sprintf("%s mentioned you", author.Username),
			Kind:      database.NotificationMention,
			RelatedID: &msg.ID,
		})
	}
	if parentAuthorID != nil && *parentAuthorID != p.AuthorID {
		notifications = append(notifications, &database.Notification{
			ID:        uuid.New(),
			UserID:    *parentAuthorID,
			Content:   fmt.Sprintf("%s replied to your message", author.Username),
			Kind:      database.NotificationReply,
			RelatedID: &msg.ID,
		})
	}

	return msg.ID, notifications, nil
}

func (m *mockStore) GetMessage(id uuid.UUID) (*database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, database.ErrMessageNotFound
	}
	return msg, nil
}

func (m *mockStore) AddReaction(messageID, userID uuid.UUID, emoji string) (*database.Reaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", messageID, userID, emoji)
	if m.reactions[key] {
		return nil, false, nil
	}
	m.reactions[key] = true
	return &database.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}, true, nil
}

func (m *mockStore) RemoveReaction(messageID, userID uuid.UUID, emoji string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", messageID, userID, emoji)
	if !m.reactions[key] {
		return false, nil
	}
	delete(m.reactions, key)
	return true, nil
}

func (m *mockStore) Close() error {
	return nil
}
