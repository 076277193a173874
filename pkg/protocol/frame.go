package protocol

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Inbound frame types. A frame with no type discriminator and a non-empty
// content (or attachment list) is a new chat message.
const (
	TypeTyping         = "typing"
	TypeReactionAdd    = "reaction_add"
	TypeReactionRemove = "reaction_remove"
	TypeCallOffer      = "call_offer"
	TypeCallAnswer     = "call_answer"
	TypeICECandidate   = "ice_candidate"
	TypeCallEnd        = "call_end"
	TypeVoiceJoin      = "voice_join"
	TypeVoicePresence  = "voice_presence"
	TypeVoiceLeave     = "voice_leave"
	TypeNotification   = "notification"
)

// ErrMalformedFrame indicates a frame that could not be decoded. Session
// loops discard these and continue.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameKind classifies an inbound frame for dispatch.
type FrameKind int

const (
	KindUnknown FrameKind = iota
	KindMessage
	KindTyping
	KindReactionAdd
	KindReactionRemove
	KindSignal
)

// Frame is the tagged union clients send on the channel stream.
type Frame struct {
	Type          string          `json:"type,omitempty"`
	Content       string          `json:"content,omitempty"`
	ParentID      *uuid.UUID      `json:"parent_id,omitempty"`
	AttachmentIDs []uuid.UUID     `json:"attachment_ids,omitempty"`
	MessageID     *uuid.UUID      `json:"message_id,omitempty"`
	Emoji         string          `json:"emoji,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	TargetUserID  *uuid.UUID      `json:"target_user_id,omitempty"`
}

// DecodeFrame parses a raw inbound frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrMalformedFrame
	}
	return &f, nil
}

var signalTypes = map[string]bool{
	TypeCallOffer:     true,
	TypeCallAnswer:    true,
	TypeICECandidate:  true,
	TypeCallEnd:       true,
	TypeVoiceJoin:     true,
	TypeVoicePresence: true,
	TypeVoiceLeave:    true,
}

// IsSignalType reports whether t is a recognized signaling event kind.
func IsSignalType(t string) bool {
	return signalTypes[t]
}

// Kind classifies the frame. Frames that carry a recognized type but are
// missing required fields classify as KindUnknown so the session loop can
// discard them without special-casing.
func (f *Frame) Kind() FrameKind {
	switch {
	case f.Type == TypeTyping:
		return KindTyping
	case f.Type == TypeReactionAdd:
		if f.MessageID == nil || f.Emoji == "" {
			return KindUnknown
		}
		return KindReactionAdd
	case f.Type == TypeReactionRemove:
		if f.MessageID == nil || f.Emoji == "" {
			return KindUnknown
		}
		return KindReactionRemove
	case IsSignalType(f.Type):
		return KindSignal
	case f.Type == "" && (f.Content != "" || len(f.AttachmentIDs) > 0):
		return KindMessage
	default:
		return KindUnknown
	}
}
