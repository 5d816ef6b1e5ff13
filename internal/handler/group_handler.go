package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

// GetGroups lists the groups visible to the caller.
func (h *Handler) GetGroups(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	groups, err := h.groups.GetGroups(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err, "failed to get groups")
		return
	}
	response.Success(c, groups)
}

func (h *Handler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create group request")
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.groups.CreateGroup(ctx, userID, &req)
	if err != nil {
		handleError(c, err, "failed to create group")
		return
	}
	response.Created(c, group)
}

// JoinGroup adds the caller to a public or anonymous group.
func (h *Handler) JoinGroup(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	membership, err := h.groups.JoinGroup(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err, "failed to join group")
		return
	}
	response.Success(c, membership)
}

func (h *Handler) ListGroupMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var q listMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.groups.ListGroupMessages(c.Request.Context(), c.Param("id"), userID, q.pageQuery())
	if err != nil {
		handleError(c, err, "failed to list group messages")
		return
	}
	response.Success(c, page)
}

func (h *Handler) SendGroupMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.groups.SendGroupMessage(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleError(c, err, "failed to send group message")
		return
	}
	response.Created(c, msg)
}

func (h *Handler) ReactToGroupMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.groups.ReactToGroupMessage(c.Request.Context(), c.Param("id"), userID, req.Emoji)
	if err != nil {
		handleError(c, err, "failed to react to group message")
		return
	}
	response.Success(c, result)
}

func (h *Handler) UnsendGroupMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.groups.UnsendGroupMessage(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleError(c, err, "failed to unsend group message")
		return
	}
	response.Success(c, gin.H{"message_id": c.Param("id")})
}
