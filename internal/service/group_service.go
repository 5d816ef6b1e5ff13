package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/peerlearn/peerlearn/internal/audit"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/log"
)

type groupServiceImpl struct {
	groups repository.GroupRepository
	ops    *messageOps
}

// NewGroupService creates a new group service.
func NewGroupService(groups repository.GroupRepository, messages repository.MessageRepository, notifier *Notifier) GroupService {
	return &groupServiceImpl{
		groups: groups,
		ops:    newMessageOps(messages, notifier),
	}
}

func (s *groupServiceImpl) GetGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return s.groups.ListVisible(ctx, userID)
}

func (s *groupServiceImpl) CreateGroup(ctx context.Context, userID string, req *domain.CreateGroupRequest) (*domain.Group, error) {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > domain.MaxGroupNameLength {
		return nil, ErrGroupNameLength
	}

	groupType := req.Type
	if groupType == "" {
		groupType = domain.GroupTypePublic
	}
	if !groupType.Valid() {
		return nil, ErrInvalidGroupType
	}

	group := &domain.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   userID,
		Type:        groupType,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionCreateGroup, userID, group.ID, "group created")
	return group, nil
}

// JoinGroup adds the user to a public or anonymous group. Joining twice
// returns the existing membership.
func (s *groupServiceImpl) JoinGroup(ctx context.Context, groupID, userID string) (*domain.GroupMembership, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if m, err := s.groups.GetMembership(ctx, groupID, userID); err == nil {
		return m, nil
	} else if !errors.Is(err, repository.ErrNotGroupMember) {
		return nil, err
	}

	if group.Type == domain.GroupTypePrivate {
		return nil, ErrPrivateGroup
	}

	m, err := s.groups.AddMember(ctx, groupID, userID, domain.GroupRoleMember)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return s.groups.GetMembership(ctx, groupID, userID)
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroupID, groupID).Msg("failed to join group")
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionJoinGroup, userID, groupID, "group joined")
	return m, nil
}

func (s *groupServiceImpl) SendGroupMessage(ctx context.Context, groupID, userID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.ops.send(ctx, groupID, true, userID, req)
}

func (s *groupServiceImpl) ListGroupMessages(ctx context.Context, groupID, userID string, q domain.PageQuery) (*domain.MessagePage, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.ops.list(ctx, groupID, true, q)
}

func (s *groupServiceImpl) ReactToGroupMessage(ctx context.Context, messageID, userID, emoji string) (*domain.ReactionResult, error) {
	if err := validateReaction(emoji); err != nil {
		return nil, err
	}

	msg, err := s.ops.get(ctx, messageID, true)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, msg.ChatID, userID); err != nil {
		return nil, err
	}
	return s.ops.react(ctx, msg, userID, emoji)
}

func (s *groupServiceImpl) UnsendGroupMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.ops.get(ctx, messageID, true)
	if err != nil {
		return err
	}
	if err := s.ops.unsend(ctx, msg, userID); err != nil {
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionUnsendMessage, userID, messageID, "group message unsent")
	return nil
}

func (s *groupServiceImpl) getGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return group, nil
}

func (s *groupServiceImpl) requireMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.groups.GetMembership(ctx, groupID, userID); err != nil {
		if errors.Is(err, repository.ErrNotGroupMember) {
			return ErrNotGroupMember
		}
		return err
	}
	return nil
}
