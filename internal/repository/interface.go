package repository

import (
	"context"
	"errors"

	"github.com/peerlearn/peerlearn/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrUsernameExists  = errors.New("username already exists")
	ErrProfileNotFound = errors.New("profile not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrChatExists      = errors.New("chat already exists")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidCursor   = errors.New("invalid pagination cursor")
	ErrGroupNotFound   = errors.New("group not found")
	ErrAlreadyMember   = errors.New("already a group member")
	ErrNotGroupMember  = errors.New("not a group member")
)

// AccountRepository persists accounts in the document store.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByProfileID(ctx context.Context, profileID string) (*domain.Account, error)
	Update(ctx context.Context, id string, update *domain.AccountUpdate) (*domain.Account, error)
	// SetUsernameByProfileID sets the username of the account linked to profileID.
	SetUsernameByProfileID(ctx context.Context, profileID, username string) error
	Delete(ctx context.Context, id string) error
}

// ProfileRepository persists the public user rows.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	// Upsert writes {id, username, avatar_url}, creating the row when missing.
	Upsert(ctx context.Context, id string, username string, avatarURL *string) (*domain.Profile, error)
	// SearchByUsername matches usernames containing query, case-insensitively.
	SearchByUsername(ctx context.Context, query string, limit int) ([]*domain.Profile, error)
	Delete(ctx context.Context, id string) error
}

// ChatRepository persists one-to-one chats.
type ChatRepository interface {
	// Create inserts a chat. It returns ErrChatExists when the pair already has one.
	Create(ctx context.Context, senderID, receiverID string) (*domain.Chat, error)
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	// FindByPair finds the chat between a and b in either direction.
	FindByPair(ctx context.Context, a, b string) (*domain.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Chat, error)
	Touch(ctx context.Context, id string) error
}

// MessageRepository persists chat and group messages. isGroup selects the
// table; conversationID is a chat ID or a group ID accordingly.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string, isGroup bool) (*domain.Message, error)
	// List returns a page ordered oldest first, older than q.Before when set.
	List(ctx context.Context, conversationID string, isGroup bool, q domain.PageQuery) (*domain.MessagePage, error)
	// ToggleReaction flips userID in the emoji's set and reports whether it was added.
	ToggleReaction(ctx context.Context, id string, isGroup bool, emoji, userID string) (*domain.Message, bool, error)
	// Delete soft-deletes a message so it disappears from listings.
	Delete(ctx context.Context, id string, isGroup bool) error
}

// GroupRepository persists groups and memberships.
type GroupRepository interface {
	// Create inserts the group and makes createdBy its admin.
	Create(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id string) (*domain.Group, error)
	// ListVisible returns public and anonymous groups plus groups userID belongs to.
	ListVisible(ctx context.Context, userID string) ([]*domain.Group, error)
	AddMember(ctx context.Context, groupID, userID string, role domain.GroupRole) (*domain.GroupMembership, error)
	GetMembership(ctx context.Context, groupID, userID string) (*domain.GroupMembership, error)
}
