package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims represents JWT claims. Subject and UserID both carry the profile ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type"` // "access" or "refresh"
	IssuedMs int64  `json:"iat_ms"`
}

// TokenPair is the result of issuing tokens for a user.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  int64
	RefreshExpiresAt int64
}

// Manager handles JWT operations.
type Manager struct {
	secret          []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
	issuer          string
	revocations     RevocationStore
	now             func() time.Time
}

// NewManager creates a new JWT manager signing with HMAC-SHA256.
// A nil store falls back to an in-memory revocation store.
func NewManager(secret string, accessDuration, refreshDuration time.Duration, issuer string, store RevocationStore) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if store == nil {
		store = NewMemoryRevocationStore()
	}

	return &Manager{
		secret:          []byte(secret),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		issuer:          issuer,
		revocations:     store,
		now:             time.Now,
	}, nil
}

// GenerateTokenPair creates access and refresh tokens.
func (m *Manager) GenerateTokenPair(userID, email, username string) (*TokenPair, error) {
	now := m.now()

	accessClaims := m.newClaims(now, m.accessDuration, userID, TokenTypeAccess)
	accessClaims.Email = email
	accessClaims.Username = username

	accessToken, err := m.signToken(accessClaims)
	if err != nil {
		return nil, err
	}

	refreshClaims := m.newClaims(now, m.refreshDuration, userID, TokenTypeRefresh)
	refreshClaims.Email = email
	refreshClaims.Username = username

	refreshToken, err := m.signToken(refreshClaims)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(m.accessDuration).Unix(),
		RefreshExpiresAt: now.Add(m.refreshDuration).Unix(),
	}, nil
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	revokedAt, revoked, err := m.revocations.RevokedAt(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if revoked && claims.IssuedMs <= revokedAt.UnixMilli() {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RefreshTokens creates a new token pair from a valid refresh token.
func (m *Manager) RefreshTokens(ctx context.Context, refreshTokenString string) (*Claims, *TokenPair, error) {
	claims, err := m.ValidateToken(ctx, refreshTokenString)
	if err != nil {
		return nil, nil, err
	}

	if claims.Type != TokenTypeRefresh {
		return nil, nil, ErrInvalidToken
	}

	pair, err := m.GenerateTokenPair(claims.UserID, claims.Email, claims.Username)
	if err != nil {
		return nil, nil, err
	}
	return claims, pair, nil
}

// RevokeUserTokens revokes every token issued to the user up to now.
// Tokens issued afterwards stay valid, so the user can log in again.
func (m *Manager) RevokeUserTokens(ctx context.Context, userID string) error {
	return m.revocations.Revoke(ctx, userID, m.now(), m.refreshDuration)
}

func (m *Manager) newClaims(now time.Time, ttl time.Duration, userID, tokenType string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   userID,
		Type:     tokenType,
		IssuedMs: now.UnixMilli(),
	}
}

func (m *Manager) signToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
