package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/idgen"
)

func seedMessages(t *testing.T, repo *GormMessageRepository, convID string, isGroup bool, n int) []*domain.Message {
	t.Helper()
	msgs := make([]*domain.Message, 0, n)
	for i := 0; i < n; i++ {
		m := &domain.Message{ChatID: convID, IsGroup: isGroup, UserID: "u1", Content: string(rune('a' + i))}
		require.NoError(t, repo.Create(context.Background(), m))
		msgs = append(msgs, m)
	}
	return msgs
}

func ids(msgs []*domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestGormMessageRepository_Create(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t), idgen.NewULIDGenerator())
	ctx := context.Background()

	msg := &domain.Message{ChatID: uuid.NewString(), UserID: "u1", Content: "hi", ImageURL: strPtr("/media/x.jpg")}
	require.NoError(t, repo.Create(ctx, msg))
	assert.Len(t, msg.ID, 26)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.NotNil(t, msg.Reactions)

	got, err := repo.GetByID(ctx, msg.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, "/media/x.jpg", *got.ImageURL)
	assert.Empty(t, got.Reactions)

	// chat and group messages live apart
	_, err = repo.GetByID(ctx, msg.ID, true)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestGormMessageRepository_ListPages(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t), idgen.NewULIDGenerator())
	ctx := context.Background()
	chatID := uuid.NewString()

	msgs := seedMessages(t, repo, chatID, false, 5)
	seedMessages(t, repo, uuid.NewString(), false, 3)

	page, err := repo.List(ctx, chatID, false, domain.PageQuery{Limit: 2})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids(msgs[3:]), ids(page.Messages))

	page, err = repo.List(ctx, chatID, false, domain.PageQuery{Before: page.Messages[0].ID, Limit: 2})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids(msgs[1:3]), ids(page.Messages))

	page, err = repo.List(ctx, chatID, false, domain.PageQuery{Before: page.Messages[0].ID, Limit: 2})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids(msgs[:1]), ids(page.Messages))

	page, err = repo.List(ctx, chatID, false, domain.PageQuery{})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids(msgs), ids(page.Messages))
}

func TestGormMessageRepository_ListEmptyAndInvalidCursor(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t), idgen.NewULIDGenerator())
	ctx := context.Background()

	page, err := repo.List(ctx, uuid.NewString(), false, domain.PageQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)

	other := seedMessages(t, repo, uuid.NewString(), false, 1)

	_, err = repo.List(ctx, uuid.NewString(), false, domain.PageQuery{Before: other[0].ID})
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = repo.List(ctx, uuid.NewString(), false, domain.PageQuery{Before: "missing"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestGormMessageRepository_ToggleReaction(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t), idgen.NewULIDGenerator())
	ctx := context.Background()
	groupID := uuid.NewString()

	msg := seedMessages(t, repo, groupID, true, 1)[0]

	got, added, err := repo.ToggleReaction(ctx, msg.ID, true, "👍", "u2")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, got.IsGroup)
	assert.Equal(t, groupID, got.ChatID)
	assert.Equal(t, map[string][]string{"👍": {"u2"}}, got.Reactions)

	got, added, err = repo.ToggleReaction(ctx, msg.ID, true, "👍", "u1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"u1", "u2"}, got.Reactions["👍"])

	got, added, err = repo.ToggleReaction(ctx, msg.ID, true, "👍", "u2")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, map[string][]string{"👍": {"u1"}}, got.Reactions)

	_, _, err = repo.ToggleReaction(ctx, msg.ID, false, "👍", "u2")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestGormMessageRepository_Delete(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t), idgen.NewULIDGenerator())
	ctx := context.Background()
	chatID := uuid.NewString()

	msgs := seedMessages(t, repo, chatID, false, 3)
	require.NoError(t, repo.Delete(ctx, msgs[1].ID, false))

	_, err := repo.GetByID(ctx, msgs[1].ID, false)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, msgs[1].ID, false), ErrMessageNotFound)

	page, err := repo.List(ctx, chatID, false, domain.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{msgs[0].ID, msgs[2].ID}, ids(page.Messages))

	// a deleted message still works as a cursor
	page, err = repo.List(ctx, chatID, false, domain.PageQuery{Before: msgs[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{msgs[0].ID}, ids(page.Messages))
}
