package domain

import "time"

// StudySession records a completed study block.
type StudySession struct {
	Topic       string    `json:"topic"`
	Duration    int       `json:"duration"` // minutes
	CompletedAt time.Time `json:"completedAt"`
}

// AccountGroup is a named circle of accounts kept on the account document.
type AccountGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Account is the credential and biography record kept in the document store.
type Account struct {
	ID            string
	Email         string
	Username      string
	Name          string
	PasswordHash  string
	Phone         string
	Github        string
	Instagram     string
	X             string
	BackgroundURL string
	Description   string
	Groups        []AccountGroup
	StudySessions []StudySession
	ProfileID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountUpdate carries the fields of a partial account update. Nil fields are untouched.
type AccountUpdate struct {
	Name          *string
	Email         *string
	PasswordHash  *string
	Phone         *string
	Username      *string
	Github        *string
	Instagram     *string
	X             *string
	BackgroundURL *string
	Description   *string
}

// IsEmpty reports whether the update changes nothing.
func (u *AccountUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil && u.Phone == nil &&
		u.Username == nil && u.Github == nil && u.Instagram == nil && u.X == nil &&
		u.BackgroundURL == nil && u.Description == nil
}

// AccountResponse is the public view of an account. The password hash never leaves the service.
type AccountResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Username      string         `json:"username,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Github        string         `json:"github,omitempty"`
	Instagram     string         `json:"instagram,omitempty"`
	X             string         `json:"x,omitempty"`
	BackgroundURL string         `json:"backgroundUrl,omitempty"`
	Description   string         `json:"description,omitempty"`
	Groups        []AccountGroup `json:"groups"`
	StudySessions []StudySession `json:"studySessions"`
	ProfileID     string         `json:"supabaseId"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ToResponse converts an Account to its public view.
func (a *Account) ToResponse() *AccountResponse {
	groups := a.Groups
	if groups == nil {
		groups = []AccountGroup{}
	}
	sessions := a.StudySessions
	if sessions == nil {
		sessions = []StudySession{}
	}
	return &AccountResponse{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Username:      a.Username,
		Phone:         a.Phone,
		Github:        a.Github,
		Instagram:     a.Instagram,
		X:             a.X,
		BackgroundURL: a.BackgroundURL,
		Description:   a.Description,
		Groups:        groups,
		StudySessions: sessions,
		ProfileID:     a.ProfileID,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// SignupResponse is returned with 201 after a successful signup.
type SignupResponse struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=25"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Phone       string `json:"phone"`
	Username    string `json:"username"`
	Github      string `json:"github"`
	Description string `json:"description"`
}

// UpdateAccountRequest represents a partial account update.
type UpdateAccountRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=3,max=25"`
	Email         *string `json:"email" binding:"omitempty,email"`
	Password      *string `json:"password" binding:"omitempty,min=6"`
	Phone         *string `json:"phone"`
	Username      *string `json:"username"`
	Github        *string `json:"github"`
	Instagram     *string `json:"instagram"`
	X             *string `json:"x"`
	BackgroundURL *string `json:"backgroundUrl"`
	Description   *string `json:"description"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest represents a refresh token request.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	Account      *AccountResponse `json:"account"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresAt    int64            `json:"expires_at"`
}
