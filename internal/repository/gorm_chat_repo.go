package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/log"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// Create creates a chat from senderID to receiverID.
func (r *GormChatRepository) Create(ctx context.Context, senderID, receiverID string) (*domain.Chat, error) {
	l := log.Ctx(ctx)

	low, high := domain.OrderedPair(senderID, receiverID)
	model := &domain.ChatModel{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		UserLow:    low,
		UserHigh:   high,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrChatExists
		}
		l.Error().Err(err).Msg("failed to create chat in db")
		return nil, err
	}

	l.Debug().Str(log.FieldChatID, model.ID).Msg("chat created in db")
	return model.ToDomain(), nil
}

// GetByID retrieves a chat by ID.
func (r *GormChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	var model domain.ChatModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, id).Msg("failed to get chat by id")
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPair finds the chat between a and b regardless of who started it.
func (r *GormChatRepository) FindByPair(ctx context.Context, a, b string) (*domain.Chat, error) {
	low, high := domain.OrderedPair(a, b)

	var model domain.ChatModel
	err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByUser returns the chats userID takes part in, most recently active first.
func (r *GormChatRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	var models []domain.ChatModel
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list user chats")
		return nil, err
	}

	chats := make([]*domain.Chat, 0, len(models))
	for i := range models {
		chats = append(chats, models[i].ToDomain())
	}
	return chats, nil
}

// Touch bumps the chat's updated_at so it sorts first in listings.
func (r *GormChatRepository) Touch(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.ChatModel{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}
