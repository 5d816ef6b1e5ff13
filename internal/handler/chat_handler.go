package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

type listMessagesQuery struct {
	Before string `form:"before"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}

func (q listMessagesQuery) pageQuery() domain.PageQuery {
	return domain.PageQuery{Before: q.Before, Limit: q.Limit}
}

// GetChats lists the caller's chats with both participants' names.
func (h *Handler) GetChats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	chats, err := h.chats.GetUserChatsWithNames(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err, "failed to get chats")
		return
	}
	response.Success(c, chats)
}

// CreateChat opens a chat with another user, or returns the existing one.
func (h *Handler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create chat request")
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.chats.CreateChat(ctx, userID, req.UserID)
	if err != nil {
		handleError(c, err, "failed to create chat")
		return
	}

	if resp.Existed {
		response.Success(c, resp)
		return
	}
	response.Created(c, resp)
}

func (h *Handler) GetChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	chat, err := h.chats.GetChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err, "failed to get chat")
		return
	}
	response.Success(c, chat)
}

// ListMessages returns one page of a chat, oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var q listMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.chats.ListMessages(c.Request.Context(), c.Param("id"), userID, q.pageQuery())
	if err != nil {
		handleError(c, err, "failed to list messages")
		return
	}
	response.Success(c, page)
}

func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.chats.SendMessage(ctx, c.Param("id"), userID, &req)
	if err != nil {
		handleError(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// ReactToMessage toggles the caller's reaction.
func (h *Handler) ReactToMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.chats.ReactToMessage(c.Request.Context(), c.Param("id"), userID, req.Emoji)
	if err != nil {
		handleError(c, err, "failed to react to message")
		return
	}
	response.Success(c, result)
}

func (h *Handler) UnsendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.chats.UnsendMessage(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleError(c, err, "failed to unsend message")
		return
	}
	response.Success(c, gin.H{"message_id": c.Param("id")})
}
