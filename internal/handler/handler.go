package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/service"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/middleware"
	"github.com/peerlearn/peerlearn/pkg/response"
)

const onboardingCookie = "onboarding_complete"

// CookieConfig shapes the onboarding cookie.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// Services groups the business services the HTTP API exposes.
type Services struct {
	Accounts   service.AccountService
	Onboarding service.OnboardingService
	Directory  service.DirectoryService
	Chats      service.ChatService
	Groups     service.GroupService
	Uploads    service.UploadService
}

// Handler handles HTTP requests for the PeerLearn API.
type Handler struct {
	accounts       service.AccountService
	onboarding     service.OnboardingService
	directory      service.DirectoryService
	chats          service.ChatService
	groups         service.GroupService
	uploads        service.UploadService
	authMiddleware *middleware.AuthMiddleware
	cookie         CookieConfig
	maxUploadBytes int64
}

// NewHandler creates a new HTTP handler.
func NewHandler(svcs Services, authMiddleware *middleware.AuthMiddleware, cookie CookieConfig, maxUploadBytes int64) *Handler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 365 * 24 * time.Hour
	}
	return &Handler{
		accounts:       svcs.Accounts,
		onboarding:     svcs.Onboarding,
		directory:      svcs.Directory,
		chats:          svcs.Chats,
		groups:         svcs.Groups,
		uploads:        svcs.Uploads,
		authMiddleware: authMiddleware,
		cookie:         cookie,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	auth := h.authMiddleware.RequireAuth()

	signup := r.Group("/api/auth/signup")
	{
		signup.POST("", h.Signup)
		signup.PUT("", auth, h.UpdateAccount)
		signup.DELETE("", auth, h.DeleteAccount)
	}

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", h.Signup)
			authGroup.POST("/login", h.Login)
			authGroup.POST("/refresh", h.RefreshToken)
			authGroup.POST("/logout", auth, h.Logout)
		}

		accounts := api.Group("/accounts", auth)
		{
			accounts.GET("/me", h.GetAccount)
			accounts.PUT("/me", h.UpdateAccount)
			accounts.DELETE("/me", h.DeleteAccount)
		}

		onboarding := api.Group("/onboarding", auth)
		{
			onboarding.GET("/status", h.OnboardingStatus)
			onboarding.GET("/username", h.CheckUsername)
			onboarding.POST("", h.CompleteOnboarding)
		}

		users := api.Group("/users", auth)
		{
			users.GET("/search", h.SearchUsers)
			users.GET("/me", h.GetMe)
		}

		chats := api.Group("/chats", auth)
		{
			chats.GET("", h.GetChats)
			chats.POST("", h.CreateChat)
			chats.GET("/:id", h.GetChat)
			chats.GET("/:id/messages", h.ListMessages)
			chats.POST("/:id/messages", h.SendMessage)
		}

		messages := api.Group("/messages", auth)
		{
			messages.POST("/:id/reactions", h.ReactToMessage)
			messages.DELETE("/:id", h.UnsendMessage)
		}

		groups := api.Group("/groups", auth)
		{
			groups.GET("", h.GetGroups)
			groups.POST("", h.CreateGroup)
			groups.POST("/:id/join", h.JoinGroup)
			groups.GET("/:id/messages", h.ListGroupMessages)
			groups.POST("/:id/messages", h.SendGroupMessage)
		}

		groupMessages := api.Group("/group-messages", auth)
		{
			groupMessages.POST("/:id/reactions", h.ReactToGroupMessage)
			groupMessages.DELETE("/:id", h.UnsendGroupMessage)
		}

		api.POST("/uploads/images", auth, h.UploadImage)
	}
}

// requireUser returns the caller's profile id, answering 401 when missing.
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return "", false
	}
	return userID, true
}

// statusFor maps a service or validation error to its HTTP status.
// Unknown errors map to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrUsernameLength),
		errors.Is(err, domain.ErrUsernameCharacters),
		errors.Is(err, domain.ErrUsernameBanned),
		errors.Is(err, service.ErrSelfChat),
		errors.Is(err, service.ErrInvalidReaction),
		errors.Is(err, service.ErrInvalidCursor),
		errors.Is(err, service.ErrInvalidGroupType),
		errors.Is(err, service.ErrGroupNameLength),
		errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotAuthor),
		errors.Is(err, service.ErrPrivateGroup),
		errors.Is(err, service.ErrNotGroupMember):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrChatNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

// handleError writes the response for err. Known errors carry their own
// message; anything else is logged and answered with fallback.
func handleError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		response.Fail(c, status, err.Error())
		return
	}

	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Msg(fallback)
	if errors.Is(err, service.ErrAccountSyncFailed) {
		fallback = err.Error()
	}
	response.InternalError(c, fallback)
}
