package domain

import (
	"time"

	"gorm.io/gorm"

	"github.com/peerlearn/peerlearn/pkg/database"
)

// ProfileModel is the GORM model for the users table.
type ProfileModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Username  *string        `gorm:"type:varchar(20);uniqueIndex"`
	AvatarURL *string        `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (ProfileModel) TableName() string {
	return "users"
}

func (m *ProfileModel) ToDomain() *Profile {
	return &Profile{
		ID:        m.ID,
		Username:  m.Username,
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ChatModel is the GORM model for the chats table. UserLow/UserHigh hold the
// participants in sorted order so the unique index covers both directions.
type ChatModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	SenderID   string    `gorm:"type:varchar(36);not null;index"`
	ReceiverID string    `gorm:"type:varchar(36);not null;index"`
	UserLow    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_chats_pair"`
	UserHigh   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_chats_pair"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (ChatModel) TableName() string {
	return "chats"
}

func (m *ChatModel) ToDomain() *Chat {
	return &Chat{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// ChatMessageModel is the GORM model for the chat_messages table.
// IDs are ULIDs, so they sort by creation time.
type ChatMessageModel struct {
	ID        string               `gorm:"type:varchar(26);primaryKey"`
	ChatID    string               `gorm:"type:varchar(36);not null;index:idx_chat_messages_chat_created,priority:1"`
	UserID    string               `gorm:"type:varchar(36);not null;index"`
	Content   string               `gorm:"type:text"`
	ImageURL  *string              `gorm:"type:text"`
	Reactions database.ReactionSet `gorm:"type:text"`
	CreatedAt time.Time            `gorm:"autoCreateTime;index:idx_chat_messages_chat_created,priority:2"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt       `gorm:"index"`
}

func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

func (m *ChatMessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		UserID:    m.UserID,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		Reactions: reactionsOut(m.Reactions),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// GroupModel is the GORM model for the groups table.
type GroupModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description string    `gorm:"type:text"`
	CreatedBy   string    `gorm:"type:varchar(36);not null;index"`
	Type        string    `gorm:"type:varchar(16);not null;default:public;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (GroupModel) TableName() string {
	return "groups"
}

func (m *GroupModel) ToDomain() *Group {
	return &Group{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		Type:        GroupType(m.Type),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// GroupMembershipModel is the GORM model for the group_memberships table.
type GroupMembershipModel struct {
	ID       string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_memberships_user_group"`
	GroupID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_memberships_user_group;index"`
	Role     string    `gorm:"type:varchar(16);not null;default:member"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (GroupMembershipModel) TableName() string {
	return "group_memberships"
}

func (m *GroupMembershipModel) ToDomain() *GroupMembership {
	return &GroupMembership{
		ID:       m.ID,
		UserID:   m.UserID,
		GroupID:  m.GroupID,
		Role:     GroupRole(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

// GroupMessageModel is the GORM model for the group_messages table.
type GroupMessageModel struct {
	ID        string               `gorm:"type:varchar(26);primaryKey"`
	GroupID   string               `gorm:"type:varchar(36);not null;index:idx_group_messages_group_created,priority:1"`
	UserID    string               `gorm:"type:varchar(36);not null;index"`
	Content   string               `gorm:"type:text"`
	ImageURL  *string              `gorm:"type:text"`
	Reactions database.ReactionSet `gorm:"type:text"`
	CreatedAt time.Time            `gorm:"autoCreateTime;index:idx_group_messages_group_created,priority:2"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt       `gorm:"index"`
}

func (GroupMessageModel) TableName() string {
	return "group_messages"
}

func (m *GroupMessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		ChatID:    m.GroupID,
		IsGroup:   true,
		UserID:    m.UserID,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		Reactions: reactionsOut(m.Reactions),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// AllModels lists every relational model for migrations.
func AllModels() []interface{} {
	return []interface{}{
		&ProfileModel{},
		&ChatModel{},
		&ChatMessageModel{},
		&GroupModel{},
		&GroupMembershipModel{},
		&GroupMessageModel{},
	}
}

func reactionsOut(r database.ReactionSet) map[string][]string {
	if len(r) == 0 {
		return map[string][]string{}
	}
	return map[string][]string(r.Clone())
}
