package service

import (
	"context"
	"errors"
	"io"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountNotFound    = errors.New("User not found")
	ErrEmailExists        = errors.New("Email already exists")
	ErrUsernameTaken      = errors.New("Username is already taken")
	ErrAccountSyncFailed  = errors.New("failed to update document-store profile")

	ErrUserNotFound    = errors.New("user not found")
	ErrSelfChat        = errors.New("Don't you have any friends?!")
	ErrChatNotFound    = errors.New("chat not found")
	ErrNotParticipant  = errors.New("not a participant of this conversation")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("only the author can unsend a message")
	ErrInvalidReaction = errors.New("unsupported reaction")
	ErrInvalidCursor   = errors.New("invalid pagination cursor")

	ErrGroupNotFound    = errors.New("group not found")
	ErrInvalidGroupType = errors.New("invalid group type")
	ErrGroupNameLength  = errors.New("group name must be between 1 and 100 characters")
	ErrPrivateGroup     = errors.New("private groups cannot be joined")
	ErrNotGroupMember   = errors.New("not a member of this group")

	ErrUnsupportedMedia = errors.New("only image uploads are allowed")
	ErrImageTooLarge    = errors.New("image exceeds the upload size limit")
	ErrInvalidImage     = errors.New("file is not a decodable image")
)

// TokenManager issues and revokes session tokens.
type TokenManager interface {
	GenerateTokenPair(userID, email, username string) (*jwt.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*jwt.Claims, *jwt.TokenPair, error)
	RevokeUserTokens(ctx context.Context, userID string) error
}

// AccountService defines account and session business logic. userID is
// always the profile id carried in the access token.
type AccountService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.SignupResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.AuthResponse, error)
	Logout(ctx context.Context, userID string) error
	GetAccount(ctx context.Context, userID string) (*domain.AccountResponse, error)
	UpdateAccount(ctx context.Context, userID string, req *domain.UpdateAccountRequest) (*domain.AccountResponse, error)
	// DeleteAccount removes the account document, soft-deletes the profile,
	// revokes tokens and removes uploaded attachments.
	DeleteAccount(ctx context.Context, userID string) error
}

// OnboardingService handles username selection after signup.
type OnboardingService interface {
	ValidateUsername(username string) (string, error)
	CheckUsernameAvailability(ctx context.Context, username string) (bool, error)
	CompleteOnboarding(ctx context.Context, userID string, req *domain.OnboardingRequest) (*domain.Profile, error)
	IsOnboarded(ctx context.Context, userID string) (bool, error)
}

// DirectoryService looks up other users.
type DirectoryService interface {
	SearchUsers(ctx context.Context, query string) ([]*domain.UserSummary, error)
	GetUserInfo(ctx context.Context, userID string) (*domain.UserInfo, error)
	// GetProfiles resolves many profiles at once, keyed by id. Unknown ids are omitted.
	GetProfiles(ctx context.Context, ids []string) (map[string]*domain.Profile, error)
	InvalidateProfile(ctx context.Context, userID string)
}

// ChatService handles one-to-one chats and their messages.
type ChatService interface {
	GetChats(ctx context.Context, userID string) ([]*domain.Chat, error)
	GetUserChatsWithNames(ctx context.Context, userID string) ([]*domain.ChatWithNames, error)
	GetChat(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	CreateChat(ctx context.Context, userID, otherID string) (*domain.CreateChatResponse, error)
	SendMessage(ctx context.Context, chatID, userID string, req *domain.SendMessageRequest) (*domain.Message, error)
	ListMessages(ctx context.Context, chatID, userID string, q domain.PageQuery) (*domain.MessagePage, error)
	ReactToMessage(ctx context.Context, messageID, userID, emoji string) (*domain.ReactionResult, error)
	UnsendMessage(ctx context.Context, messageID, userID string) error
}

// GroupService handles study groups and their messages.
type GroupService interface {
	GetGroups(ctx context.Context, userID string) ([]*domain.Group, error)
	CreateGroup(ctx context.Context, userID string, req *domain.CreateGroupRequest) (*domain.Group, error)
	JoinGroup(ctx context.Context, groupID, userID string) (*domain.GroupMembership, error)
	SendGroupMessage(ctx context.Context, groupID, userID string, req *domain.SendMessageRequest) (*domain.Message, error)
	ListGroupMessages(ctx context.Context, groupID, userID string, q domain.PageQuery) (*domain.MessagePage, error)
	ReactToGroupMessage(ctx context.Context, messageID, userID, emoji string) (*domain.ReactionResult, error)
	UnsendGroupMessage(ctx context.Context, messageID, userID string) error
}

// UploadService stores chat image attachments.
type UploadService interface {
	UploadImage(ctx context.Context, userID, contentType string, size int64, r io.Reader) (*domain.UploadResult, error)
}
