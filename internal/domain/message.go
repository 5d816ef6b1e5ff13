package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxMessageLength   = 4000
	DefaultPageSize    = 50
	MaxPageSize        = 100
	MaxSearchResults   = 20
	MinSearchQueryLen  = 3
	MaxGroupNameLength = 100
)

// AllowedReactions is the fixed reaction palette.
var AllowedReactions = []string{"😊", "😂", "❤️", "👍", "😢"}

// IsAllowedReaction reports whether emoji is in the palette.
func IsAllowedReaction(emoji string) bool {
	for _, e := range AllowedReactions {
		if e == emoji {
			return true
		}
	}
	return false
}

// Message is a chat or group message. For group messages ChatID holds the group ID.
type Message struct {
	ID        string              `json:"id"`
	ChatID    string              `json:"chat_id"`
	IsGroup   bool                `json:"is_group"`
	UserID    string              `json:"user_id"`
	Content   string              `json:"content"`
	ImageURL  *string             `json:"image_url,omitempty"`
	Reactions map[string][]string `json:"reactions"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// MessagePage is one page of a conversation, oldest first.
type MessagePage struct {
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"has_more"`
}

// PageQuery selects messages strictly older than Before (a message ID) when set.
type PageQuery struct {
	Before string
	Limit  int
}

// Normalize clamps the limit to the allowed range.
func (q PageQuery) Normalize() PageQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}
	return q
}

// SendMessageRequest posts a message. Content, ImageURL or both must be set.
type SendMessageRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

// Validate checks the content and image rules.
func (r *SendMessageRequest) Validate() error {
	hasImage := r.ImageURL != nil && *r.ImageURL != ""
	if strings.TrimSpace(r.Content) == "" && !hasImage {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(r.Content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ReactRequest toggles the caller's reaction on a message.
type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ReactionResult is the message reaction state after a toggle.
type ReactionResult struct {
	MessageID string              `json:"message_id"`
	ChatID    string              `json:"chat_id"`
	IsGroup   bool                `json:"is_group"`
	Emoji     string              `json:"emoji"`
	UserID    string              `json:"user_id"`
	Added     bool                `json:"added"`
	Reactions map[string][]string `json:"reactions"`
}
