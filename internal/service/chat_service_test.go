package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

func TestChatService_CreateChat(t *testing.T) {
	env := newTestEnv(t)
	svc := env.chatService()
	ctx := context.Background()

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	_, err := svc.CreateChat(ctx, alice, alice)
	assert.ErrorIs(t, err, ErrSelfChat)
	assert.Equal(t, "Don't you have any friends?!", err.Error())

	_, err = svc.CreateChat(ctx, alice, uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)

	created, err := svc.CreateChat(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, created.Existed)
	assert.NotEmpty(t, created.ChatID)

	again, err := svc.CreateChat(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, again.Existed)
	assert.Equal(t, created.ChatID, again.ChatID)

	chat, err := svc.GetChat(ctx, bob, created.ChatID)
	require.NoError(t, err)
	assert.Equal(t, alice, chat.SenderID)
	assert.Equal(t, bob, chat.ReceiverID)

	carol := env.newUser(t, "carol")
	_, err = svc.GetChat(ctx, carol, created.ChatID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChatService_GetUserChatsWithNames(t *testing.T) {
	env := newTestEnv(t)
	svc := env.chatService()
	ctx := context.Background()

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	carol := env.newUser(t, "carol")

	chats, err := svc.GetUserChatsWithNames(ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Empty(t, chats)

	_, err = svc.CreateChat(ctx, alice, bob)
	require.NoError(t, err)
	_, err = svc.CreateChat(ctx, carol, alice)
	require.NoError(t, err)

	chats, err = svc.GetUserChatsWithNames(ctx, alice)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	names := map[string]string{}
	for _, c := range chats {
		require.NotNil(t, c.SenderUsername)
		require.NotNil(t, c.ReceiverUsername)
		names[*c.SenderUsername] = *c.ReceiverUsername
	}
	assert.Equal(t, map[string]string{"alice": "bob", "carol": "alice"}, names)

	plain, err := svc.GetChats(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, plain, 1)
}

func TestChatService_SendAndListMessages(t *testing.T) {
	env := newTestEnv(t)
	svc := env.chatService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	created, err := svc.CreateChat(ctx, alice, bob)
	require.NoError(t, err)

	events, err := env.bus.Subscribe(ctx, pubsub.ChatChannel(created.ChatID))
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, created.ChatID, alice, &domain.SendMessageRequest{Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	ev := nextEvent(t, events)
	assert.Equal(t, pubsub.EventNewMessage, ev.Type)
	assert.Equal(t, created.ChatID, ev.ChatID)
	var published domain.Message
	require.NoError(t, ev.UnmarshalPayload(&published))
	assert.Equal(t, msg.ID, published.ID)
	assert.Equal(t, "hello", published.Content)

	_, err = svc.SendMessage(ctx, created.ChatID, bob, &domain.SendMessageRequest{ImageURL: strPtr("/media/a.jpg")})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, created.ChatID, bob, &domain.SendMessageRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, created.ChatID, bob, &domain.SendMessageRequest{Content: "   \n"})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, created.ChatID, bob, &domain.SendMessageRequest{Content: strings.Repeat("x", domain.MaxMessageLength+1)})
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)

	_, err = svc.SendMessage(ctx, uuid.NewString(), bob, &domain.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrChatNotFound)

	carol := env.newUser(t, "carol")
	_, err = svc.SendMessage(ctx, created.ChatID, carol, &domain.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)

	page, err := svc.ListMessages(ctx, created.ChatID, bob, domain.PageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, "hello", page.Messages[0].Content)
	assert.Equal(t, "/media/a.jpg", *page.Messages[1].ImageURL)

	older, err := svc.ListMessages(ctx, created.ChatID, bob, domain.PageQuery{Before: page.Messages[1].ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, older.Messages, 1)
	assert.Equal(t, msg.ID, older.Messages[0].ID)

	_, err = svc.ListMessages(ctx, created.ChatID, carol, domain.PageQuery{})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.ListMessages(ctx, created.ChatID, bob, domain.PageQuery{Before: "not-a-message"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestChatService_ReactToMessage(t *testing.T) {
	env := newTestEnv(t)
	svc := env.chatService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	created, err := svc.CreateChat(ctx, alice, bob)
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, created.ChatID, alice, &domain.SendMessageRequest{Content: "hello"})
	require.NoError(t, err)

	events, err := env.bus.Subscribe(ctx, pubsub.ChatChannel(created.ChatID))
	require.NoError(t, err)

	_, err = svc.ReactToMessage(ctx, msg.ID, bob, "🙃")
	assert.ErrorIs(t, err, ErrInvalidReaction)

	result, err := svc.ReactToMessage(ctx, msg.ID, bob, "👍")
	require.NoError(t, err)
	assert.True(t, result.Added)
	assert.Equal(t, []string{bob}, result.Reactions["👍"])

	ev := nextEvent(t, events)
	assert.Equal(t, pubsub.EventMessageReacted, ev.Type)

	result, err = svc.ReactToMessage(ctx, msg.ID, bob, "👍")
	require.NoError(t, err)
	assert.False(t, result.Added)
	assert.NotContains(t, result.Reactions, "👍")

	carol := env.newUser(t, "carol")
	_, err = svc.ReactToMessage(ctx, msg.ID, carol, "👍")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.ReactToMessage(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", bob, "👍")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestChatService_UnsendMessage(t *testing.T) {
	env := newTestEnv(t)
	svc := env.chatService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	created, err := svc.CreateChat(ctx, alice, bob)
	require.NoError(t, err)
	msg, err := svc.SendMessage(ctx, created.ChatID, alice, &domain.SendMessageRequest{Content: "oops"})
	require.NoError(t, err)

	events, err := env.bus.Subscribe(ctx, pubsub.ChatChannel(created.ChatID))
	require.NoError(t, err)

	err = svc.UnsendMessage(ctx, msg.ID, bob)
	assert.ErrorIs(t, err, ErrNotAuthor)

	require.NoError(t, svc.UnsendMessage(ctx, msg.ID, alice))

	ev := nextEvent(t, events)
	assert.Equal(t, pubsub.EventMessageUnsent, ev.Type)
	var payload pubsub.MessageUnsentPayload
	require.NoError(t, ev.UnmarshalPayload(&payload))
	assert.Equal(t, msg.ID, payload.MessageID)

	page, err := svc.ListMessages(ctx, created.ChatID, alice, domain.PageQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	err = svc.UnsendMessage(ctx, msg.ID, alice)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
