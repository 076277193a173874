package server

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
	"github.com/kiyotaka-koji-0/Diligental/pkg/protocol"
)

var mentionRegex = regexp.MustCompile(`@([a-zA-Z0-9_-]+)`)

// ExtractMentions returns the @identifiers in content, deduplicated, in
// order of first appearance. Resolution against real users happens in the
// persistence unit; tokens that resolve to nobody are dropped there.
func ExtractMentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		mentions = append(mentions, m[1])
	}
	return mentions
}

// postMessage runs the ingestion pipeline for one inbound message frame:
// persist the message with attachment links and synthesized notifications as
// one unit, reload the canonical representation, then deliver. Delivery
// happens strictly after the commit; on persistence failure nothing is
// broadcast and the error goes back to the session loop.
func (s *Server) postMessage(client *Client, frame *protocol.Frame) error {
	channelID := client.Channel()
	if channelID == nil {
		return fmt.Errorf("message frame on a channel-less session")
	}

	msgID, notifications, err := s.store.CreateMessage(database.CreateMessageParams{
		ChannelID:     *channelID,
		AuthorID:      client.User().ID,
		Content:       frame.Content,
		ParentID:      frame.ParentID,
		AttachmentIDs: frame.AttachmentIDs,
		Mentions:      ExtractMentions(frame.Content),
	})
	if err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	// Reload with relationships resolved so subscribers never see a
	// representation with dangling references.
	msg, err := s.store.GetMessage(msgID)
	if err != nil {
		return fmt.Errorf("failed to reload message %s: %w", msgID, err)
	}

	s.dispatcher.BroadcastToChannel(msg.ChannelID, messageEvent(msg))
	for _, notif := range notifications {
		s.dispatcher.SendToUser(notif.UserID, notificationEvent(notif))
	}

	if s.metrics != nil {
		s.metrics.RecordMessageCreated()
		s.metrics.RecordNotificationsPushed(len(notifications))
	}

	return nil
}

// messageEvent converts a loaded message row into its wire shape. A freshly
// created message always carries an empty (not null) reactions array.
func messageEvent(msg *database.Message) protocol.MessageEvent {
	attachments := make([]protocol.AttachmentInfo, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, protocol.AttachmentInfo{
			ID:       att.ID,
			Filename: att.Filename,
			URL:      att.URL,
		})
	}

	event := protocol.MessageEvent{
		ID:          msg.ID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		ParentID:    msg.ParentID,
		Content:     msg.Content,
		CreatedAt:   time.UnixMilli(msg.CreatedAt).UTC(),
		Attachments: attachments,
		Reactions:   []protocol.ReactionInfo{},
	}
	if msg.Author != nil {
		event.User = protocol.UserSummary{
			Username: msg.Author.Username,
			Email:    msg.Author.Email,
		}
	}
	return event
}

func notificationEvent(notif *database.Notification) protocol.NotificationEvent {
	return protocol.NotificationEvent{
		Type: protocol.TypeNotification,
		Data: protocol.NotificationData{
			ID:        notif.ID,
			UserID:    notif.UserID,
			Content:   notif.Content,
			Kind:      notif.Kind,
			IsRead:    notif.IsRead,
			CreatedAt: time.UnixMilli(notif.CreatedAt).UTC(),
			RelatedID: notif.RelatedID,
		},
	}
}
