package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/idgen"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM. Chat and
// group messages live in separate tables with the same shape.
type GormMessageRepository struct {
	db  *gorm.DB
	ids *idgen.ULIDGenerator
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB, ids *idgen.ULIDGenerator) *GormMessageRepository {
	return &GormMessageRepository{db: db, ids: ids}
}

// Create assigns a ULID and stores the message. created_at is taken from the
// ULID so both sort keys agree.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	id, err := r.ids.Generate()
	if err != nil {
		return err
	}
	createdAt, err := r.ids.Time(id)
	if err != nil {
		return err
	}
	createdAt = createdAt.UTC()

	var model interface{}
	if msg.IsGroup {
		model = &domain.GroupMessageModel{
			ID:        id,
			GroupID:   msg.ChatID,
			UserID:    msg.UserID,
			Content:   msg.Content,
			ImageURL:  msg.ImageURL,
			Reactions: database.ReactionSet{},
			CreatedAt: createdAt,
		}
	} else {
		model = &domain.ChatMessageModel{
			ID:        id,
			ChatID:    msg.ChatID,
			UserID:    msg.UserID,
			Content:   msg.Content,
			ImageURL:  msg.ImageURL,
			Reactions: database.ReactionSet{},
			CreatedAt: createdAt,
		}
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldChatID, msg.ChatID).Msg("failed to create message in db")
		return err
	}

	msg.ID = id
	msg.Reactions = map[string][]string{}
	msg.CreatedAt = createdAt
	msg.UpdatedAt = createdAt
	return nil
}

// GetByID retrieves a live message.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string, isGroup bool) (*domain.Message, error) {
	return r.get(r.db.WithContext(ctx), id, isGroup)
}

// List returns up to q.Limit messages ending just before q.Before.
func (r *GormMessageRepository) List(ctx context.Context, conversationID string, isGroup bool, q domain.PageQuery) (*domain.MessagePage, error) {
	q = q.Normalize()
	db := r.db.WithContext(ctx)

	column := "chat_id"
	if isGroup {
		column = "group_id"
	}
	query := db.Where(column+" = ?", conversationID)

	if q.Before != "" {
		// Unsent messages still work as cursors.
		cursor, err := r.get(db.Unscoped(), q.Before, isGroup)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return nil, ErrInvalidCursor
			}
			return nil, err
		}
		if cursor.ChatID != conversationID {
			return nil, ErrInvalidCursor
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	if isGroup {
		return listPage(query, q.Limit, (*domain.GroupMessageModel).ToDomain)
	}
	return listPage(query, q.Limit, (*domain.ChatMessageModel).ToDomain)
}

// ToggleReaction flips the user's reaction inside a row-locked transaction.
func (r *GormMessageRepository) ToggleReaction(ctx context.Context, id string, isGroup bool, emoji, userID string) (*domain.Message, bool, error) {
	var (
		msg   *domain.Message
		added bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, isGroup)
		if err != nil {
			return err
		}

		reactions := database.ReactionSet(current.Reactions)
		added = reactions.Toggle(emoji, userID)

		if err := tx.Model(messageModel(isGroup)).Where("id = ?", id).
			Update("reactions", reactions).Error; err != nil {
			return err
		}

		msg, err = r.get(tx, id, isGroup)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrMessageNotFound) {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldMessageID, id).Msg("failed to toggle reaction")
		}
		return nil, false, err
	}
	return msg, added, nil
}

// Delete soft-deletes a message.
func (r *GormMessageRepository) Delete(ctx context.Context, id string, isGroup bool) error {
	result := r.db.WithContext(ctx).Delete(messageModel(isGroup), "id = ?", id)
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to delete message")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *GormMessageRepository) get(db *gorm.DB, id string, isGroup bool) (*domain.Message, error) {
	if isGroup {
		return firstMessage(db, id, (*domain.GroupMessageModel).ToDomain)
	}
	return firstMessage(db, id, (*domain.ChatMessageModel).ToDomain)
}

func messageModel(isGroup bool) interface{} {
	if isGroup {
		return &domain.GroupMessageModel{}
	}
	return &domain.ChatMessageModel{}
}

func firstMessage[M any](db *gorm.DB, id string, toDomain func(*M) *domain.Message) (*domain.Message, error) {
	var model M
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return toDomain(&model), nil
}

// listPage fetches limit+1 rows newest first to learn whether more exist,
// then returns the page oldest first.
func listPage[M any](query *gorm.DB, limit int, toDomain func(*M) *domain.Message) (*domain.MessagePage, error) {
	var models []M
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	hasMore := len(models) > limit
	if hasMore {
		models = models[:limit]
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[len(models)-1-i] = toDomain(&models[i])
	}

	return &domain.MessagePage{Messages: messages, HasMore: hasMore}, nil
}
