package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

// OnboardingStatus reports whether the caller has picked a username. The
// onboarding cookie short-circuits the lookup; lookup errors report false.
func (h *Handler) OnboardingStatus(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if v, err := c.Cookie(onboardingCookie); err == nil && v == "true" {
		response.Success(c, domain.OnboardingStatus{IsOnboarded: true})
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	onboarded, err := h.onboarding.IsOnboarded(ctx, userID)
	if err != nil {
		l.Error().Err(err).Msg("failed to check onboarding status")
		response.Success(c, domain.OnboardingStatus{IsOnboarded: false})
		return
	}

	if onboarded {
		h.setOnboardingCookie(c)
	}
	response.Success(c, domain.OnboardingStatus{IsOnboarded: onboarded})
}

// CheckUsername reports whether a username is free.
func (h *Handler) CheckUsername(c *gin.Context) {
	ctx := c.Request.Context()

	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		response.BadRequest(c, "username is required")
		return
	}

	available, err := h.onboarding.CheckUsernameAvailability(ctx, username)
	if err != nil {
		handleError(c, err, "failed to check username availability")
		return
	}

	response.Success(c, domain.UsernameAvailability{Username: username, Available: available})
}

// CompleteOnboarding stores the caller's username and avatar.
func (h *Handler) CompleteOnboarding(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind onboarding request")
		response.BadRequest(c, err.Error())
		return
	}

	profile, err := h.onboarding.CompleteOnboarding(ctx, userID, &req)
	if err != nil {
		handleError(c, err, "failed to complete onboarding")
		return
	}

	h.setOnboardingCookie(c)
	response.Success(c, profile)
}

func (h *Handler) setOnboardingCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(onboardingCookie, "true", int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}
