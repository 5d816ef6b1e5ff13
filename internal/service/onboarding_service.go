package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/peerlearn/peerlearn/internal/audit"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
)

type onboardingServiceImpl struct {
	accounts    repository.AccountRepository
	profiles    repository.ProfileRepository
	directory   DirectoryService
	bannedWords []string
}

// NewOnboardingService creates a new onboarding service. A nil bannedWords
// list uses domain.DefaultBannedWords.
func NewOnboardingService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	directory DirectoryService,
	bannedWords []string,
) OnboardingService {
	if bannedWords == nil {
		bannedWords = domain.DefaultBannedWords
	}
	return &onboardingServiceImpl{
		accounts:    accounts,
		profiles:    profiles,
		directory:   directory,
		bannedWords: bannedWords,
	}
}

func (s *onboardingServiceImpl) ValidateUsername(username string) (string, error) {
	return domain.ValidateUsername(username, s.bannedWords)
}

// CheckUsernameAvailability reports whether no profile holds username.
func (s *onboardingServiceImpl) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	_, err := s.profiles.GetByUsername(ctx, strings.TrimSpace(username))
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, repository.ErrProfileNotFound):
		return true, nil
	default:
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to check username availability")
		return false, err
	}
}

// CompleteOnboarding stores the chosen username on both stores and the avatar on the profile.
func (s *onboardingServiceImpl) CompleteOnboarding(ctx context.Context, userID string, req *domain.OnboardingRequest) (*domain.Profile, error) {
	l := log.Ctx(ctx)

	username, err := s.ValidateUsername(req.Username)
	if err != nil {
		return nil, err
	}

	// The availability check and the account lookup are independent.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		existing, err := s.profiles.GetByUsername(gctx, username)
		switch {
		case err == nil && existing.ID != userID:
			return ErrUsernameTaken
		case err != nil && !errors.Is(err, repository.ErrProfileNotFound):
			return err
		}
		return nil
	})
	var account *domain.Account
	g.Go(func() error {
		a, err := s.accounts.GetByProfileID(gctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return ErrAccountSyncFailed
			}
			return err
		}
		account = a
		return nil
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrUsernameTaken) && !errors.Is(err, ErrAccountSyncFailed) {
			l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to prepare onboarding")
		}
		return nil, err
	}

	if err := s.accounts.SetUsernameByProfileID(ctx, userID, username); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to set account username")
		return nil, ErrAccountSyncFailed
	}

	var avatarURL *string
	if a := strings.TrimSpace(req.AvatarURL); a != "" {
		avatarURL = &a
	}

	profile, err := s.profiles.Upsert(ctx, userID, username, avatarURL)
	if err != nil {
		if rerr := s.accounts.SetUsernameByProfileID(ctx, userID, account.Username); rerr != nil {
			l.Error().Err(rerr).Str(log.FieldUserID, userID).Msg("failed to restore account username")
		}
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to upsert profile")
		return nil, err
	}
	s.directory.InvalidateProfile(ctx, userID)

	audit.LogWithDetail(ctx, audit.ActionOnboard, userID, username, "onboarding completed")
	return profile, nil
}

// IsOnboarded reports whether the profile has a username.
func (s *onboardingServiceImpl) IsOnboarded(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.HasUsername(), nil
}
