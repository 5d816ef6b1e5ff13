package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerlearn/peerlearn/internal/config"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/hub"
	"github.com/peerlearn/peerlearn/internal/service"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves the chat session socket.
type WSHandler struct {
	hub            *hub.Hub
	chats          service.ChatService
	groups         service.GroupService
	authMiddleware *middleware.AuthMiddleware
	wsCfg          config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, chats service.ChatService, groups service.GroupService, authMiddleware *middleware.AuthMiddleware, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:            h,
		chats:          chats,
		groups:         groups,
		authMiddleware: authMiddleware,
		wsCfg:          wsCfg,
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/ws", h.authMiddleware.RequireAuth(), h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	session := domain.NewChatSession(clientID, userID, middleware.GetUsername(c))
	client := hub.NewClient(clientID, h.hub, conn, session, h.wsCfg)

	connLogger := l.With().Str("client_id", clientID).Logger()
	ctx, cancel := context.WithCancel(log.WithLogger(context.WithoutCancel(c.Request.Context()), connLogger))
	defer cancel()

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(ctx, h.handleMessage)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeSwitchChat:
		var msg domain.SwitchChatMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.ChatID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid switch_chat message"))
			return
		}
		// Claimed here in frame order; the load runs concurrently so a newer
		// switch can supersede a slow one.
		client.SendMessage(&domain.LoadingMessage{Type: domain.MsgTypeLoading, Value: true})
		sw := client.Session.BeginSwitch(ctx, msg.ChatID, msg.IsGroup)
		go h.switchChat(ctx, client, sw)

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid send_message"))
			return
		}
		h.sendMessage(ctx, client, &domain.SendMessageRequest{Content: msg.Content, ImageURL: msg.ImageURL})

	case domain.MsgTypeReact:
		var msg domain.ReactMessageWS
		if err := json.Unmarshal(message, &msg); err != nil || msg.MessageID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid react message"))
			return
		}
		h.react(ctx, client, msg.MessageID, msg.Emoji)

	case domain.MsgTypeUnsend:
		var msg domain.UnsendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil || msg.MessageID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid unsend message"))
			return
		}
		h.unsend(ctx, client, msg.MessageID)

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) switchChat(ctx context.Context, client *hub.Client, sw *domain.PendingSwitch) {
	// Frames go out inside the commit so no live message for the new chat
	// can overtake chat_switched.
	_, err := sw.Complete(h.pageLoader(client.Session.UserID), func(page *domain.MessagePage) {
		client.SendMessage(&domain.LoadingMessage{Type: domain.MsgTypeLoading, Value: false})
		client.SendMessage(&domain.ChatSwitchedMessage{
			Type:     domain.MsgTypeChatSwitched,
			ChatID:   sw.ChatID(),
			IsGroup:  sw.IsGroup(),
			Messages: page.Messages,
			HasMore:  page.HasMore,
		})
	})
	if err == nil || errors.Is(err, domain.ErrSwitchSuperseded) {
		return
	}
	client.SendMessage(&domain.LoadingMessage{Type: domain.MsgTypeLoading, Value: false})
	h.sendError(ctx, client, err)
}

func (h *WSHandler) pageLoader(userID string) domain.PageLoader {
	return func(ctx context.Context, chatID string, isGroup bool) (*domain.MessagePage, error) {
		if isGroup {
			return h.groups.ListGroupMessages(ctx, chatID, userID, domain.PageQuery{})
		}
		return h.chats.ListMessages(ctx, chatID, userID, domain.PageQuery{})
	}
}

// The new message reaches this client, like every other watcher, through the hub.
func (h *WSHandler) sendMessage(ctx context.Context, client *hub.Client, req *domain.SendMessageRequest) {
	chatID, isGroup, ok := client.Session.ActiveChat()
	if !ok {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNoActiveChat, "no active chat"))
		return
	}

	var err error
	if isGroup {
		_, err = h.groups.SendGroupMessage(ctx, chatID, client.Session.UserID, req)
	} else {
		_, err = h.chats.SendMessage(ctx, chatID, client.Session.UserID, req)
	}
	if err != nil {
		h.sendError(ctx, client, err)
	}
}

func (h *WSHandler) react(ctx context.Context, client *hub.Client, messageID, emoji string) {
	_, isGroup, ok := client.Session.ActiveChat()
	if !ok {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNoActiveChat, "no active chat"))
		return
	}

	var err error
	if isGroup {
		_, err = h.groups.ReactToGroupMessage(ctx, messageID, client.Session.UserID, emoji)
	} else {
		_, err = h.chats.ReactToMessage(ctx, messageID, client.Session.UserID, emoji)
	}
	if err != nil {
		h.sendError(ctx, client, err)
	}
}

func (h *WSHandler) unsend(ctx context.Context, client *hub.Client, messageID string) {
	_, isGroup, ok := client.Session.ActiveChat()
	if !ok {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNoActiveChat, "no active chat"))
		return
	}

	var err error
	if isGroup {
		err = h.groups.UnsendGroupMessage(ctx, messageID, client.Session.UserID)
	} else {
		err = h.chats.UnsendMessage(ctx, messageID, client.Session.UserID)
	}
	if err != nil {
		h.sendError(ctx, client, err)
	}
}

func (h *WSHandler) sendError(ctx context.Context, client *hub.Client, err error) {
	var code string
	message := err.Error()

	switch statusFor(err) {
	case http.StatusBadRequest:
		code = domain.ErrCodeBadRequest
	case http.StatusForbidden:
		code = domain.ErrCodeForbidden
	case http.StatusNotFound:
		code = domain.ErrCodeNotFound
	default:
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("websocket request failed")
		code = domain.ErrCodeInternalError
		message = "internal error"
	}
	client.SendMessage(domain.NewErrorMessage(code, message))
}
