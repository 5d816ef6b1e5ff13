package domain

import "errors"

// Validation errors shared by services and the WebSocket session.
var (
	ErrEmptyMessage   = errors.New("message must have content or an image")
	ErrMessageTooLong = errors.New("message is too long")

	ErrUsernameLength     = errors.New("username must be between 3 and 20 characters")
	ErrUsernameCharacters = errors.New("username may only contain letters, numbers and underscores")
	ErrUsernameBanned     = errors.New("username contains a banned word")
)
