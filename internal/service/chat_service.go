package service

import (
	"context"
	"errors"

	"github.com/peerlearn/peerlearn/internal/audit"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
)

// chatServiceImpl implements ChatService interface.
type chatServiceImpl struct {
	chats     repository.ChatRepository
	profiles  repository.ProfileRepository
	directory DirectoryService
	ops       *messageOps
}

// NewChatService creates a new chat service.
func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	profiles repository.ProfileRepository,
	directory DirectoryService,
	notifier *Notifier,
) ChatService {
	return &chatServiceImpl{
		chats:     chats,
		profiles:  profiles,
		directory: directory,
		ops:       newMessageOps(messages, notifier),
	}
}

// GetChats returns every chat the user takes part in.
func (s *chatServiceImpl) GetChats(ctx context.Context, userID string) ([]*domain.Chat, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// GetUserChatsWithNames decorates the user's chats with both participants'
// username and avatar, resolved in one batched lookup.
func (s *chatServiceImpl) GetUserChatsWithNames(ctx context.Context, userID string) ([]*domain.ChatWithNames, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return []*domain.ChatWithNames{}, nil
	}

	ids := make([]string, 0, len(chats)*2)
	for _, c := range chats {
		ids = append(ids, c.SenderID, c.ReceiverID)
	}

	profiles, err := s.directory.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.ChatWithNames, 0, len(chats))
	for _, c := range chats {
		item := &domain.ChatWithNames{Chat: *c}
		if p, ok := profiles[c.SenderID]; ok {
			item.SenderUsername = p.Username
			item.SenderAvatarURL = p.AvatarURL
		}
		if p, ok := profiles[c.ReceiverID]; ok {
			item.ReceiverUsername = p.Username
			item.ReceiverAvatarURL = p.AvatarURL
		}
		result = append(result, item)
	}
	return result, nil
}

// GetChat returns the chat when userID participates in it.
func (s *chatServiceImpl) GetChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// CreateChat returns the chat between the two users, creating it when missing.
func (s *chatServiceImpl) CreateChat(ctx context.Context, userID, otherID string) (*domain.CreateChatResponse, error) {
	l := log.Ctx(ctx)

	if userID == otherID {
		return nil, ErrSelfChat
	}

	if _, err := s.profiles.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.chats.FindByPair(ctx, userID, otherID)
	if err == nil {
		return &domain.CreateChatResponse{ChatID: existing.ID, Existed: true}, nil
	}
	if !errors.Is(err, repository.ErrChatNotFound) {
		l.Error().Err(err).Msg("failed to look up chat")
		return nil, err
	}

	chat, err := s.chats.Create(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, repository.ErrChatExists) {
			// Lost a race with a concurrent create; the unique pair index kept one row.
			existing, findErr := s.chats.FindByPair(ctx, userID, otherID)
			if findErr != nil {
				return nil, findErr
			}
			return &domain.CreateChatResponse{ChatID: existing.ID, Existed: true}, nil
		}
		l.Error().Err(err).Msg("failed to create chat")
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionCreateChat, userID, chat.ID, "chat created")
	return &domain.CreateChatResponse{ChatID: chat.ID}, nil
}

func (s *chatServiceImpl) SendMessage(ctx context.Context, chatID, userID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	msg, err := s.ops.send(ctx, chatID, false, userID, req)
	if err != nil {
		return nil, err
	}

	if err := s.chats.Touch(ctx, chatID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldChatID, chatID).Msg("failed to touch chat")
	}
	return msg, nil
}

func (s *chatServiceImpl) ListMessages(ctx context.Context, chatID, userID string, q domain.PageQuery) (*domain.MessagePage, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.ops.list(ctx, chatID, false, q)
}

func (s *chatServiceImpl) ReactToMessage(ctx context.Context, messageID, userID, emoji string) (*domain.ReactionResult, error) {
	if err := validateReaction(emoji); err != nil {
		return nil, err
	}

	msg, err := s.ops.get(ctx, messageID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.participantChat(ctx, msg.ChatID, userID); err != nil {
		return nil, err
	}
	return s.ops.react(ctx, msg, userID, emoji)
}

func (s *chatServiceImpl) UnsendMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.ops.get(ctx, messageID, false)
	if err != nil {
		return err
	}
	if err := s.ops.unsend(ctx, msg, userID); err != nil {
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionUnsendMessage, userID, messageID, "message unsent")
	return nil
}

// participantChat loads the chat and checks membership. A missing chat is
// ErrChatNotFound; a chat the user is not part of is ErrNotParticipant.
func (s *chatServiceImpl) participantChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return chat, nil
}
