package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/pkg/response"
)

// SearchUsers finds users by username substring.
func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.directory.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleError(c, err, "failed to search users")
		return
	}
	response.Success(c, users)
}

// GetMe returns the caller's username and avatar.
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	info, err := h.directory.GetUserInfo(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err, "failed to get user info")
		return
	}
	response.Success(c, info)
}
