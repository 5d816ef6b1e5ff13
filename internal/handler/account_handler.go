package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

// Signup creates an account and its empty profile.
func (h *Handler) Signup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind signup request")
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.Signup(ctx, &req)
	if err != nil {
		handleError(c, err, "failed to create user")
		return
	}

	response.Created(c, resp)
}

// Login authenticates a user.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.Login(ctx, &req)
	if err != nil {
		handleError(c, err, "failed to login")
		return
	}

	response.Success(c, resp)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h *Handler) RefreshToken(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.RefreshToken(ctx, &req)
	if err != nil {
		handleError(c, err, "failed to refresh token")
		return
	}

	response.Success(c, resp)
}

// Logout revokes the caller's tokens.
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), userID); err != nil {
		handleError(c, err, "failed to logout")
		return
	}

	response.Success(c, gin.H{"message": "logged out successfully"})
}

func (h *Handler) GetAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err, "failed to get account")
		return
	}

	response.Success(c, account)
}

// UpdateAccount applies a partial update to the caller's account.
func (h *Handler) UpdateAccount(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind update account request")
		response.BadRequest(c, err.Error())
		return
	}

	account, err := h.accounts.UpdateAccount(ctx, userID, &req)
	if err != nil {
		handleError(c, err, "failed to update user")
		return
	}

	response.Success(c, account)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), userID); err != nil {
		handleError(c, err, "failed to delete user")
		return
	}

	response.Success(c, gin.H{"message": "User deleted successfully"})
}
