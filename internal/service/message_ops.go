package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

// messageOps holds the message rules shared by chats and groups. Request
// validation and access checks happen in the callers.
type messageOps struct {
	messages repository.MessageRepository
	notifier *Notifier
	pages    singleflight.Group
}

func newMessageOps(messages repository.MessageRepository, notifier *Notifier) *messageOps {
	return &messageOps{messages: messages, notifier: notifier}
}

func (o *messageOps) send(ctx context.Context, conversationID string, isGroup bool, userID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	msg := &domain.Message{
		ChatID:  conversationID,
		IsGroup: isGroup,
		UserID:  userID,
		Content: req.Content,
	}
	if req.ImageURL != nil && *req.ImageURL != "" {
		msg.ImageURL = req.ImageURL
	}

	if err := o.messages.Create(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, conversationID).Msg("failed to store message")
		return nil, err
	}

	o.notifier.Notify(ctx, pubsub.EventNewMessage, conversationID, isGroup, msg)
	return msg, nil
}

// list collapses concurrent identical page requests into one query.
func (o *messageOps) list(ctx context.Context, conversationID string, isGroup bool, q domain.PageQuery) (*domain.MessagePage, error) {
	q = q.Normalize()
	key := fmt.Sprintf("%t:%s:%s:%d", isGroup, conversationID, q.Before, q.Limit)

	v, err, _ := o.pages.Do(key, func() (interface{}, error) {
		return o.messages.List(context.WithoutCancel(ctx), conversationID, isGroup, q)
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, conversationID).Msg("failed to list messages")
		return nil, err
	}
	return v.(*domain.MessagePage), nil
}

func (o *messageOps) get(ctx context.Context, messageID string, isGroup bool) (*domain.Message, error) {
	msg, err := o.messages.GetByID(ctx, messageID, isGroup)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (o *messageOps) react(ctx context.Context, msg *domain.Message, userID, emoji string) (*domain.ReactionResult, error) {
	updated, added, err := o.messages.ToggleReaction(ctx, msg.ID, msg.IsGroup, emoji, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to toggle reaction")
		return nil, err
	}

	result := &domain.ReactionResult{
		MessageID: updated.ID,
		ChatID:    updated.ChatID,
		IsGroup:   updated.IsGroup,
		Emoji:     emoji,
		UserID:    userID,
		Added:     added,
		Reactions: updated.Reactions,
	}
	o.notifier.Notify(ctx, pubsub.EventMessageReacted, updated.ChatID, updated.IsGroup, result)
	return result, nil
}

func (o *messageOps) unsend(ctx context.Context, msg *domain.Message, userID string) error {
	if msg.UserID != userID {
		return ErrNotAuthor
	}

	if err := o.messages.Delete(ctx, msg.ID, msg.IsGroup); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to unsend message")
		return err
	}

	o.notifier.Notify(ctx, pubsub.EventMessageUnsent, msg.ChatID, msg.IsGroup, &pubsub.MessageUnsentPayload{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		IsGroup:   msg.IsGroup,
	})
	return nil
}

func validateReaction(emoji string) error {
	if !domain.IsAllowedReaction(emoji) {
		return ErrInvalidReaction
	}
	return nil
}
