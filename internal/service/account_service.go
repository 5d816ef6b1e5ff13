package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/peerlearn/peerlearn/internal/audit"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/storage"
)

const DefaultBcryptCost = 12

// AccountConfig tunes the account service.
type AccountConfig struct {
	BcryptCost  int
	BannedWords []string
}

// accountServiceImpl implements AccountService interface.
type accountServiceImpl struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	tokens    TokenManager
	directory DirectoryService
	media     storage.Storage
	cfg       AccountConfig
}

// NewAccountService creates a new account service. media may be nil.
func NewAccountService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	tokens TokenManager,
	directory DirectoryService,
	media storage.Storage,
	cfg AccountConfig,
) AccountService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.BannedWords == nil {
		cfg.BannedWords = domain.DefaultBannedWords
	}
	return &accountServiceImpl{
		accounts:  accounts,
		profiles:  profiles,
		tokens:    tokens,
		directory: directory,
		media:     media,
		cfg:       cfg,
	}
}

// Signup creates the account document and its empty profile row.
func (s *accountServiceImpl) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.SignupResponse, error) {
	l := log.Ctx(ctx)

	email := normalizeEmail(req.Email)
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		l.Error().Err(err).Msg("failed to check email")
		return nil, err
	}

	var username string
	if strings.TrimSpace(req.Username) != "" {
		u, err := domain.ValidateUsername(req.Username, s.cfg.BannedWords)
		if err != nil {
			return nil, err
		}
		username = u
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	profile := &domain.Profile{ID: uuid.New().String()}
	if username != "" {
		profile.Username = &username
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Msg("failed to create profile")
		return nil, err
	}

	account := &domain.Account{
		Email:        email,
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hashedPassword),
		Phone:        req.Phone,
		Github:       req.Github,
		Description:  req.Description,
		ProfileID:    profile.ID,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		// Roll back the profile so a retry can reuse the username.
		if delErr := s.profiles.Delete(ctx, profile.ID); delErr != nil {
			l.Warn().Err(delErr).Str(log.FieldUserID, profile.ID).Msg("failed to roll back profile")
		}
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Msg("failed to create account")
		return nil, err
	}

	audit.Log(ctx, audit.ActionSignup, profile.ID, "account created")

	return &domain.SignupResponse{
		Name:      account.Name,
		Email:     account.Email,
		Username:  account.Username,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, nil
}

// Login authenticates an account and issues a token pair.
func (s *accountServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	email := normalizeEmail(req.Email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", email, "login failed: account not found")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get account by email")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, account.ProfileID, email, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.GenerateTokenPair(account.ProfileID, account.Email, account.Username)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, account.ProfileID).Msg("failed to generate tokens after login")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, account.ProfileID, "account logged in")

	return &domain.AuthResponse{
		Account:      account.ToResponse(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
	}, nil
}

// RefreshToken exchanges a refresh token for a new pair.
func (s *accountServiceImpl) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	claims, pair, err := s.tokens.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		l.Warn().Err(err).Msg("failed to refresh token")
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByProfileID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		l.Error().Err(err).Str(log.FieldUserID, claims.UserID).Msg("failed to get account after token refresh")
		return nil, err
	}

	audit.Log(ctx, audit.ActionRefreshToken, claims.UserID, "token refreshed")

	return &domain.AuthResponse{
		Account:      account.ToResponse(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
	}, nil
}

// Logout revokes every token issued so far.
func (s *accountServiceImpl) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeUserTokens(ctx, userID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to revoke tokens")
		return err
	}

	audit.Log(ctx, audit.ActionLogout, userID, "account logged out")
	return nil
}

// GetAccount returns the caller's account.
func (s *accountServiceImpl) GetAccount(ctx context.Context, userID string) (*domain.AccountResponse, error) {
	account, err := s.accounts.GetByProfileID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get account")
		return nil, err
	}
	return account.ToResponse(), nil
}

// UpdateAccount applies a partial update. A new username is mirrored onto the profile.
func (s *accountServiceImpl) UpdateAccount(ctx context.Context, userID string, req *domain.UpdateAccountRequest) (*domain.AccountResponse, error) {
	l := log.Ctx(ctx)

	account, err := s.accounts.GetByProfileID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get account for update")
		return nil, err
	}

	update := &domain.AccountUpdate{
		Phone:         req.Phone,
		Github:        req.Github,
		Instagram:     req.Instagram,
		X:             req.X,
		BackgroundURL: req.BackgroundURL,
		Description:   req.Description,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		update.Name = &name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		update.Email = &email
	}
	if req.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.cfg.BcryptCost)
		if err != nil {
			l.Error().Err(err).Msg("failed to hash password")
			return nil, err
		}
		hash := string(hashedPassword)
		update.PasswordHash = &hash
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) != "" {
		username, err := domain.ValidateUsername(*req.Username, s.cfg.BannedWords)
		if err != nil {
			return nil, err
		}
		if username != account.Username {
			if err := s.checkProfileUsername(ctx, userID, username); err != nil {
				return nil, err
			}
			update.Username = &username
		}
	}

	if update.IsEmpty() {
		return account.ToResponse(), nil
	}

	// The account document goes first; the profile mirrors it afterwards and
	// a failed mirror reverts the document.
	updated, err := s.accounts.Update(ctx, account.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to update account")
		return nil, err
	}

	if update.Username != nil {
		if err := s.syncProfileUsername(ctx, userID, *update.Username); err != nil {
			if _, rerr := s.accounts.Update(ctx, account.ID, revertUpdate(account, update)); rerr != nil {
				l.Error().Err(rerr).Str(log.FieldUserID, userID).Msg("failed to revert account after profile sync")
			}
			return nil, err
		}
	}

	audit.Log(ctx, audit.ActionUpdateAccount, userID, "account updated")
	return updated.ToResponse(), nil
}

// checkProfileUsername fails with ErrUsernameTaken when another profile holds username.
func (s *accountServiceImpl) checkProfileUsername(ctx context.Context, userID, username string) error {
	existing, err := s.profiles.GetByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != userID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, repository.ErrProfileNotFound):
		return err
	}
	return nil
}

// revertUpdate builds the update that restores prev for every field update touched.
func revertUpdate(prev *domain.Account, update *domain.AccountUpdate) *domain.AccountUpdate {
	restore := func(changed *string, old string) *string {
		if changed == nil {
			return nil
		}
		return &old
	}
	return &domain.AccountUpdate{
		Name:          restore(update.Name, prev.Name),
		Email:         restore(update.Email, prev.Email),
		PasswordHash:  restore(update.PasswordHash, prev.PasswordHash),
		Phone:         restore(update.Phone, prev.Phone),
		Username:      restore(update.Username, prev.Username),
		Github:        restore(update.Github, prev.Github),
		Instagram:     restore(update.Instagram, prev.Instagram),
		X:             restore(update.X, prev.X),
		BackgroundURL: restore(update.BackgroundURL, prev.BackgroundURL),
		Description:   restore(update.Description, prev.Description),
	}
}

func (s *accountServiceImpl) syncProfileUsername(ctx context.Context, userID, username string) error {
	var avatarURL *string
	profile, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		avatarURL = profile.AvatarURL
	case !errors.Is(err, repository.ErrProfileNotFound):
		return err
	}

	if _, err := s.profiles.Upsert(ctx, userID, username, avatarURL); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return ErrUsernameTaken
		}
		return err
	}
	s.directory.InvalidateProfile(ctx, userID)
	return nil
}

// DeleteAccount removes everything the account owns.
func (s *accountServiceImpl) DeleteAccount(ctx context.Context, userID string) error {
	l := log.Ctx(ctx)

	account, err := s.accounts.GetByProfileID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get account for delete")
		return err
	}

	if err := s.tokens.RevokeUserTokens(ctx, userID); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to revoke tokens before delete")
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to delete account")
		return err
	}

	if err := s.profiles.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to delete profile")
		return err
	}
	s.directory.InvalidateProfile(ctx, userID)

	if s.media != nil {
		if err := s.media.DeletePrefix(ctx, attachmentPrefix(userID)); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to delete attachments")
		}
	}

	audit.Log(ctx, audit.ActionDeleteAccount, userID, "account deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
