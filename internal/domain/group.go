package domain

import "time"

// GroupType controls who can see and join a group.
type GroupType string

const (
	GroupTypePublic    GroupType = "public"
	GroupTypePrivate   GroupType = "private"
	GroupTypeAnonymous GroupType = "anonymous"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	switch t {
	case GroupTypePublic, GroupTypePrivate, GroupTypeAnonymous:
		return true
	}
	return false
}

// GroupRole is a member's role inside a group.
type GroupRole string

const (
	GroupRoleMember GroupRole = "member"
	GroupRoleAdmin  GroupRole = "admin"
)

// Group is a study group with its own message stream.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	Type        GroupType `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupMembership links a user to a group.
type GroupMembership struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	GroupID  string    `json:"group_id"`
	Role     GroupRole `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// CreateGroupRequest represents a group creation request.
type CreateGroupRequest struct {
	Name        string    `json:"name" binding:"required,max=100"`
	Description string    `json:"description"`
	Type        GroupType `json:"type"`
}
