package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/log"
)

// GormGroupRepository implements GroupRepository using GORM.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GORM-based group repository.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// Create inserts the group and its creator's admin membership atomically.
func (r *GormGroupRepository) Create(ctx context.Context, group *domain.Group) error {
	l := log.Ctx(ctx)

	if group.Type == "" {
		group.Type = domain.GroupTypePublic
	}
	model := &domain.GroupModel{
		ID:          uuid.New().String(),
		Name:        group.Name,
		Description: group.Description,
		CreatedBy:   group.CreatedBy,
		Type:        string(group.Type),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&domain.GroupMembershipModel{
			ID:      uuid.New().String(),
			UserID:  group.CreatedBy,
			GroupID: model.ID,
			Role:    string(domain.GroupRoleAdmin),
		}).Error
	})
	if err != nil {
		l.Error().Err(err).Msg("failed to create group in db")
		return err
	}

	group.ID = model.ID
	group.CreatedAt = model.CreatedAt
	group.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldGroupID, group.ID).Msg("group created in db")
	return nil
}

// GetByID retrieves a group by ID.
func (r *GormGroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	var model domain.GroupModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListVisible returns non-private groups plus the private ones userID belongs to.
func (r *GormGroupRepository) ListVisible(ctx context.Context, userID string) ([]*domain.Group, error) {
	member := r.db.Model(&domain.GroupMembershipModel{}).
		Select("group_id").
		Where("user_id = ?", userID)

	var models []domain.GroupModel
	err := r.db.WithContext(ctx).
		Where("type <> ? OR id IN (?)", string(domain.GroupTypePrivate), member).
		Order("name ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list groups")
		return nil, err
	}

	groups := make([]*domain.Group, 0, len(models))
	for i := range models {
		groups = append(groups, models[i].ToDomain())
	}
	return groups, nil
}

// AddMember adds userID to the group with the given role.
func (r *GormGroupRepository) AddMember(ctx context.Context, groupID, userID string, role domain.GroupRole) (*domain.GroupMembership, error) {
	model := &domain.GroupMembershipModel{
		ID:      uuid.New().String(),
		UserID:  userID,
		GroupID: groupID,
		Role:    string(role),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroupID, groupID).Msg("failed to add group member")
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetMembership returns ErrNotGroupMember when userID is not in the group.
func (r *GormGroupRepository) GetMembership(ctx context.Context, groupID, userID string) (*domain.GroupMembership, error) {
	var model domain.GroupMembershipModel
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotGroupMember
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
