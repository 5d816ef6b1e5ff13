package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/log"
)

// likeEscape is portable across postgres, mysql and sqlite, unlike backslash.
const likeEscape = "!"

// GormProfileRepository implements ProfileRepository using GORM.
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GORM-based profile repository.
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// Create inserts an empty profile row for a new account.
func (r *GormProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	model := &domain.ProfileModel{
		ID:        profile.ID,
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUsernameExists
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, profile.ID).Msg("failed to create profile in db")
		return err
	}

	profile.CreatedAt = model.CreatedAt
	profile.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a profile by ID.
func (r *GormProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var model domain.ProfileModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetByIDs retrieves every existing profile among ids in one query.
func (r *GormProfileRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Profile, error) {
	if len(ids) == 0 {
		return []*domain.Profile{}, nil
	}

	var models []domain.ProfileModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	profiles := make([]*domain.Profile, 0, len(models))
	for i := range models {
		profiles = append(profiles, models[i].ToDomain())
	}
	return profiles, nil
}

// GetByUsername retrieves a profile by its exact username.
func (r *GormProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	var model domain.ProfileModel
	if err := r.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert writes the onboarding fields, inserting the row when it is missing.
func (r *GormProfileRepository) Upsert(ctx context.Context, id string, username string, avatarURL *string) (*domain.Profile, error) {
	model := &domain.ProfileModel{
		ID:        id,
		Username:  &username,
		AvatarURL: avatarURL,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUsernameExists
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, id).Msg("failed to upsert profile")
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// SearchByUsername returns profiles whose username contains query, ignoring case.
func (r *GormProfileRepository) SearchByUsername(ctx context.Context, query string, limit int) ([]*domain.Profile, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var models []domain.ProfileModel
	err := r.db.WithContext(ctx).
		Where("username IS NOT NULL AND LOWER(username) LIKE ? ESCAPE '"+likeEscape+"'", pattern).
		Order("username ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	profiles := make([]*domain.Profile, 0, len(models))
	for i := range models {
		profiles = append(profiles, models[i].ToDomain())
	}
	return profiles, nil
}

// Delete soft-deletes a profile and releases its username for reuse.
func (r *GormProfileRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.ProfileModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}

		if err := tx.Model(&domain.ProfileModel{}).Where("id = ?", id).
			Update("username", gorm.Expr("NULL")).Error; err != nil {
			return err
		}

		return tx.Delete(&domain.ProfileModel{}, "id = ?", id).Error
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	).Replace(s)
}
