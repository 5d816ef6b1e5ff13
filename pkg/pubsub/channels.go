package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming for conversation fan-out.
const (
	ChannelChat  = "chat:%s"
	ChannelGroup = "group:%s"

	PatternAllChats  = "chat:*"
	PatternAllGroups = "group:*"
)

// Event types pushed to chat participants.
const (
	EventNewMessage     = "new_message"
	EventMessageReacted = "message_reacted"
	EventMessageUnsent  = "message_unsent"
)

// ChatChannel returns the channel name for a one-to-one chat.
func ChatChannel(chatID string) string {
	return fmt.Sprintf(ChannelChat, chatID)
}

// GroupChannel returns the channel name for a group conversation.
func GroupChannel(groupID string) string {
	return fmt.Sprintf(ChannelGroup, groupID)
}

// ConversationChannel picks the chat or group channel.
func ConversationChannel(id string, isGroup bool) string {
	if isGroup {
		return GroupChannel(id)
	}
	return ChatChannel(id)
}

// ParseChannel splits a channel name into its conversation ID and kind.
func ParseChannel(channel string) (id string, isGroup bool, err error) {
	prefix, id, ok := strings.Cut(channel, ":")
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false, fmt.Errorf("invalid channel format: %s", channel)
	}
	switch prefix {
	case "chat":
		return id, false, nil
	case "group":
		return id, true, nil
	default:
		return "", false, fmt.Errorf("invalid channel format: %s", channel)
	}
}

// MessageUnsentPayload is published when an author unsends a message.
type MessageUnsentPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	IsGroup   bool   `json:"is_group"`
}
