package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
)

// CloseForbidden is the application close code sent when credential
// validation fails at connect time.
const CloseForbidden = 4003

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from a separately served frontend; origin
		// policy is enforced at the edge proxy.
		return true
	},
}

// HandleChannelWS serves the channel stream: GET /ws/{channelID}/{token}.
// The bearer credential travels in the path because headers are unavailable
// to browser WebSocket clients during the handshake.
func (s *Server) HandleChannelWS(w http.ResponseWriter, r *http.Request) {
	rawChannelID := chi.URLParam(r, "channelID")
	token := chi.URLParam(r, "token")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	user := s.authenticate(ws, token)
	if user == nil {
		return
	}

	channelID, err := uuid.Parse(rawChannelID)
	if err != nil {
		s.refuse(ws)
		return
	}

	client := NewClient(ws, user, &channelID, s.config.WriteTimeout())

	// Registered under the channel for chat fan-out and under the user so
	// directed signaling reaches this device across channels.
	s.registry.RegisterChannel(channelID, client)
	s.registry.RegisterUser(user.ID, client)

	s.log.Info().Str("user", user.Username).Stringer("channel", channelID).Msg("channel session opened")
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened("channel")
	}

	defer func() {
		// The only guaranteed cleanup path: deregister from every
		// namespace on transport closure.
		s.registry.Drop(client)
		client.Close()
		s.log.Info().Str("user", user.Username).Stringer("channel", channelID).Msg("channel session closed")
		if s.metrics != nil {
			s.metrics.RecordConnectionClosed("channel")
		}
	}()

	for {
		data, err := client.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(client, data)
	}
}

// HandleNotificationWS serves the personal notification stream:
// GET /ws/notifications/{token}. Receive-only from the client's perspective;
// inbound frames are keepalives, read and discarded.
func (s *Server) HandleNotificationWS(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	user := s.authenticate(ws, token)
	if user == nil {
		return
	}

	client := NewClient(ws, user, nil, s.config.WriteTimeout())
	s.registry.RegisterUser(user.ID, client)

	s.log.Info().Str("user", user.Username).Msg("notification session opened")
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened("notification")
	}

	defer func() {
		s.registry.Drop(client)
		client.Close()
		s.log.Info().Str("user", user.Username).Msg("notification session closed")
		if s.metrics != nil {
			s.metrics.RecordConnectionClosed("notification")
		}
	}()

	for {
		if _, err := client.ReadMessage(); err != nil {
			return
		}
	}
}

// authenticate validates the bearer credential and resolves it to a user.
// On failure the connection is refused with the forbidden close code and nil
// is returned; no registry entry is ever created for a refused connection.
func (s *Server) authenticate(ws *websocket.Conn, token string) *database.User {
	username, err := s.auth.VerifyAccessToken(token)
	if err != nil {
		s.log.Info().Err(err).Msg("connection refused: bad credential")
		s.refuse(ws)
		return nil
	}

	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		s.log.Info().Err(err).Str("username", username).Msg("connection refused: unknown user")
		s.refuse(ws)
		return nil
	}

	return user
}

func (s *Server) refuse(ws *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseForbidden, "forbidden"), deadline)
	ws.Close()
}
