package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
)

// DefaultBannedWords is the stock username blocklist.
var DefaultBannedWords = []string{"badword1", "badword2", "slur1", "slur2"}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateUsername trims u and checks it against the username rules.
// It returns the trimmed username.
func ValidateUsername(u string, bannedWords []string) (string, error) {
	trimmed := strings.TrimSpace(u)

	n := utf8.RuneCountInString(trimmed)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return "", ErrUsernameLength
	}
	if !usernamePattern.MatchString(trimmed) {
		return "", ErrUsernameCharacters
	}

	lower := strings.ToLower(trimmed)
	for _, word := range bannedWords {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return "", ErrUsernameBanned
		}
	}

	return trimmed, nil
}
