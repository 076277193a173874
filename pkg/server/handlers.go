package server

import (
	"fmt"

	"github.com/kiyotaka-koji-0/Diligental/pkg/protocol"
)

// handleFrame decodes one inbound frame and routes it to a pipeline.
// Malformed or unrecognized frames are discarded silently; bad input must
// never end the session.
func (s *Server) handleFrame(client *Client, data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		s.log.Debug().Str("user", client.User().Username).Msg("discarding malformed frame")
		return
	}

	kind := frame.Kind()
	if s.metrics != nil {
		s.metrics.RecordFrameReceived(frameKindLabel(kind))
	}

	var handleErr error
	switch kind {
	case protocol.KindMessage:
		handleErr = s.handlePostMessage(client, frame)
	case protocol.KindTyping:
		s.handleTyping(client, frame)
	case protocol.KindReactionAdd:
		handleErr = s.handleReaction(client, frame, true)
	case protocol.KindReactionRemove:
		handleErr = s.handleReaction(client, frame, false)
	case protocol.KindSignal:
		s.handleSignal(client, frame)
	default:
		s.log.Debug().Str("user", client.User().Username).Str("type", frame.Type).Msg("discarding unrecognized frame")
	}

	// The client gets no error frame; the action is simply not broadcast.
	if handleErr != nil {
		s.log.Warn().Err(handleErr).Str("user", client.User().Username).Msg("frame handling failed")
	}
}

func (s *Server) handlePostMessage(client *Client, frame *protocol.Frame) error {
	if max := s.config.Limits.MaxMessageLength; max > 0 && len(frame.Content) > max {
		s.log.Debug().Str("user", client.User().Username).Int("length", len(frame.Content)).Msg("discarding oversized message")
		return nil
	}
	return s.postMessage(client, frame)
}

// handleTyping relays the ephemeral typing indicator to the channel with the
// sender identity attached. Never persisted.
func (s *Server) handleTyping(client *Client, frame *protocol.Frame) {
	channelID := client.Channel()
	if channelID == nil {
		return
	}

	s.dispatcher.BroadcastToChannel(*channelID, protocol.TypingEvent{
		Type:     protocol.TypeTyping,
		UserID:   client.User().ID,
		Username: client.User().Username,
		ParentID: frame.ParentID,
	})
}

func (s *Server) handleReaction(client *Client, frame *protocol.Frame, add bool) error {
	channelID := client.Channel()
	if channelID == nil {
		return nil
	}

	if add {
		reaction, created, err := s.store.AddReaction(*frame.MessageID, client.User().ID, frame.Emoji)
		if err != nil {
			return fmt.Errorf("failed to add reaction: %w", err)
		}
		if !created {
			return nil // triple already exists, nothing to broadcast
		}
		s.dispatcher.BroadcastToChannel(*channelID, protocol.ReactionEvent{
			Type:      protocol.TypeReactionAdd,
			MessageID: reaction.MessageID,
			UserID:    reaction.UserID,
			Emoji:     reaction.Emoji,
		})
		return nil
	}

	removed, err := s.store.RemoveReaction(*frame.MessageID, client.User().ID, frame.Emoji)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	if !removed {
		return nil
	}
	s.dispatcher.BroadcastToChannel(*channelID, protocol.ReactionEvent{
		Type:      protocol.TypeReactionRemove,
		MessageID: *frame.MessageID,
		UserID:    client.User().ID,
		Emoji:     frame.Emoji,
	})
	return nil
}

// handleSignal relays an opaque signaling payload. No persistence, no
// inspection of the payload.
func (s *Server) handleSignal(client *Client, frame *protocol.Frame) {
	channelID := client.Channel()
	if channelID == nil {
		return
	}

	s.dispatcher.Relay(*channelID, frame.TargetUserID, protocol.SignalEvent{
		Type:           frame.Type,
		Payload:        frame.Payload,
		TargetUserID:   frame.TargetUserID,
		SenderID:       client.User().ID,
		SenderUsername: client.User().Username,
	})
}

func frameKindLabel(kind protocol.FrameKind) string {
	switch kind {
	case protocol.KindMessage:
		return "message"
	case protocol.KindTyping:
		return "typing"
	case protocol.KindReactionAdd:
		return "reaction_add"
	case protocol.KindReactionRemove:
		return "reaction_remove"
	case protocol.KindSignal:
		return "signal"
	default:
		return "unknown"
	}
}
