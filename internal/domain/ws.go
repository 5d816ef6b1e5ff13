package domain

// WebSocket message types from client.
const (
	MsgTypeSwitchChat  = "switch_chat"
	MsgTypeSendMessage = "send_message"
	MsgTypeReact       = "react"
	MsgTypeUnsend      = "unsend"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeChatSwitched   = "chat_switched"
	MsgTypeLoading        = "loading"
	MsgTypeNewMessage     = "new_message"
	MsgTypeMessageReacted = "message_reacted"
	MsgTypeMessageUnsent  = "message_unsent"
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeNoActiveChat  = "NO_ACTIVE_CHAT"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type SwitchChatMessage struct {
	Type    string `json:"type"`
	ChatID  string `json:"chat_id"`
	IsGroup bool   `json:"is_group"`
}

type SendMessageWS struct {
	Type     string  `json:"type"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

type ReactMessageWS struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type UnsendMessageWS struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

// Server -> Client messages

type ChatSwitchedMessage struct {
	Type     string     `json:"type"`
	ChatID   string     `json:"chat_id"`
	IsGroup  bool       `json:"is_group"`
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"has_more"`
}

type LoadingMessage struct {
	Type  string `json:"type"`
	Value bool   `json:"value"`
}

type NewMessageOut struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type MessageReactedOut struct {
	Type     string          `json:"type"`
	Reaction *ReactionResult `json:"reaction"`
}

type MessageUnsentOut struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	IsGroup   bool   `json:"is_group"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
