package domain

import "time"

// Profile is the public identity row every chat, message and group references.
type Profile struct {
	ID        string    `json:"id"`
	Username  *string   `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasUsername reports whether onboarding picked a username.
func (p *Profile) HasUsername() bool {
	return p.Username != nil && *p.Username != ""
}

// UserSummary is a directory search hit.
type UserSummary struct {
	ID        string  `json:"id"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// UserInfo is the display information of a single user.
type UserInfo struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// OnboardingRequest completes onboarding for the caller.
type OnboardingRequest struct {
	Username  string `json:"username" binding:"required"`
	AvatarURL string `json:"avatar_url"`
}

// OnboardingStatus reports whether the caller finished onboarding.
type OnboardingStatus struct {
	IsOnboarded bool `json:"isOnboarded"`
}

// UsernameAvailability is the result of an availability check.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}
