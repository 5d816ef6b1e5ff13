package domain

import "time"

// Chat is a one-to-one conversation. SenderID started it, ReceiverID was contacted.
type Chat struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is one side of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Chat) OtherParticipant(userID string) string {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// ChatWithNames is a chat decorated with both participants' display data.
type ChatWithNames struct {
	Chat
	SenderUsername    *string `json:"sender_username"`
	SenderAvatarURL   *string `json:"sender_avatar_url"`
	ReceiverUsername  *string `json:"receiver_username"`
	ReceiverAvatarURL *string `json:"receiver_avatar_url"`
}

// OrderedPair normalizes an unordered pair of user IDs.
func OrderedPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// CreateChatRequest starts (or finds) a chat with another user.
type CreateChatRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateChatResponse carries the chat ID and whether it already existed.
type CreateChatResponse struct {
	ChatID  string `json:"chat_id"`
	Existed bool   `json:"existed"`
}
