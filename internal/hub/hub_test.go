package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/peerlearn/internal/config"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub()
	go h.Run(ctx)
	return h, ctx
}

// newWatchingClient registers a client whose session has chatID active.
func newWatchingClient(t *testing.T, h *Hub, id, chatID string, isGroup bool, existing ...*domain.Message) *Client {
	t.Helper()
	session := domain.NewChatSession(id, "user-"+id, "")
	_, err := session.SwitchChat(context.Background(), chatID, isGroup, func(ctx context.Context, chatID string, isGroup bool) (*domain.MessagePage, error) {
		return &domain.MessagePage{Messages: existing}, nil
	})
	require.NoError(t, err)

	c := NewClient(id, h, nil, session, config.WebSocketConfig{})
	h.Register(c)
	h.Watch(c, chatID, isGroup)
	return c
}

func readFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func mustEvent(t *testing.T, eventType, chatID string, isGroup bool, payload interface{}) *pubsub.Event {
	t.Helper()
	ev, err := pubsub.NewEvent(eventType, chatID, isGroup, payload)
	require.NoError(t, err)
	return ev
}

func TestHub_DispatchNewMessage(t *testing.T) {
	h, _ := startHub(t)

	watcher := newWatchingClient(t, h, "a", "chat-1", false)
	other := newWatchingClient(t, h, "b", "chat-2", false)
	group := newWatchingClient(t, h, "c", "chat-1", true)

	msg := &domain.Message{ID: "m1", ChatID: "chat-1", UserID: "u1", Content: "hi"}
	h.Dispatch(mustEvent(t, pubsub.EventNewMessage, "chat-1", false, msg))

	frame := readFrame(t, watcher)
	assert.Equal(t, domain.MsgTypeNewMessage, frame["type"])
	require.Len(t, watcher.Session.Messages(), 1)
	assert.Equal(t, "m1", watcher.Session.Messages()[0].ID)

	assertNoFrame(t, other)
	assertNoFrame(t, group)

	// duplicates are not re-sent
	h.Dispatch(mustEvent(t, pubsub.EventNewMessage, "chat-1", false, msg))
	assertNoFrame(t, watcher)
}

func TestHub_DispatchReactionAndUnsend(t *testing.T) {
	h, _ := startHub(t)

	existing := &domain.Message{ID: "m1", ChatID: "g1", IsGroup: true, UserID: "u1", Content: "hi"}
	c := newWatchingClient(t, h, "a", "g1", true, existing)

	h.Dispatch(mustEvent(t, pubsub.EventMessageReacted, "g1", true, &domain.ReactionResult{
		MessageID: "m1",
		ChatID:    "g1",
		IsGroup:   true,
		Emoji:     "👍",
		UserID:    "u2",
		Added:     true,
		Reactions: map[string][]string{"👍": {"u2"}},
	}))
	frame := readFrame(t, c)
	assert.Equal(t, domain.MsgTypeMessageReacted, frame["type"])
	assert.Equal(t, []string{"u2"}, c.Session.Messages()[0].Reactions["👍"])

	h.Dispatch(mustEvent(t, pubsub.EventMessageUnsent, "g1", true, &pubsub.MessageUnsentPayload{
		MessageID: "m1",
		ChatID:    "g1",
		IsGroup:   true,
	}))
	frame = readFrame(t, c)
	assert.Equal(t, domain.MsgTypeMessageUnsent, frame["type"])
	assert.Equal(t, "m1", frame["message_id"])
	assert.Empty(t, c.Session.Messages())
}

func TestHub_WatchMovesClient(t *testing.T) {
	h, _ := startHub(t)

	c := newWatchingClient(t, h, "a", "chat-1", false)
	assert.Equal(t, 1, h.WatcherCount("chat-1", false))

	h.Watch(c, "chat-2", false)
	assert.Equal(t, 0, h.WatcherCount("chat-1", false))
	assert.Equal(t, 1, h.WatcherCount("chat-2", false))

	h.Unregister(c)
	assert.Eventually(t, func() bool { return h.WatcherCount("chat-2", false) == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestHub_Listen(t *testing.T) {
	h, ctx := startHub(t)
	bus := pubsub.NewMemoryPubSub()
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, h.Listen(ctx, bus))
	c := newWatchingClient(t, h, "a", "chat-1", false)

	ev := mustEvent(t, pubsub.EventNewMessage, "chat-1", false, &domain.Message{ID: "m1", ChatID: "chat-1"})
	require.NoError(t, bus.Publish(ctx, ev.Channel(), ev))

	frame := readFrame(t, c)
	assert.Equal(t, domain.MsgTypeNewMessage, frame["type"])
}

func TestClient_SendMessageBufferFull(t *testing.T) {
	c := NewClient("a", NewHub(), nil, domain.NewChatSession("a", "u", ""), config.WebSocketConfig{})
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.SendMessage(map[string]string{"type": domain.MsgTypePong}))
	}
	assert.ErrorIs(t, c.SendMessage(map[string]string{"type": domain.MsgTypePong}), ErrSendBufferFull)
}

func TestHub_OverlappingSwitchesWatchLatest(t *testing.T) {
	h, _ := startHub(t)
	c := NewClient("a", h, nil, domain.NewChatSession("a", "u1", ""), config.WebSocketConfig{})
	h.Register(c)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Session.SwitchChat(context.Background(), "chat-b", false, func(ctx context.Context, chatID string, isGroup bool) (*domain.MessagePage, error) {
			close(started)
			<-release
			return &domain.MessagePage{}, nil
		})
		done <- err
	}()

	<-started
	_, err := c.Session.SwitchChat(context.Background(), "chat-c", false, func(ctx context.Context, chatID string, isGroup bool) (*domain.MessagePage, error) {
		return &domain.MessagePage{}, nil
	})
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, domain.ErrSwitchSuperseded)

	assert.Equal(t, 1, h.WatcherCount("chat-c", false))
	assert.Equal(t, 0, h.WatcherCount("chat-b", false))

	msg := &domain.Message{ID: "m1", ChatID: "chat-c", UserID: "u2", Content: "hi"}
	h.Dispatch(mustEvent(t, pubsub.EventNewMessage, "chat-c", false, msg))

	frame := readFrame(t, c)
	assert.Equal(t, domain.MsgTypeNewMessage, frame["type"])
	require.Len(t, c.Session.Messages(), 1)
}

func TestHub_MessageDuringSwitchIsKept(t *testing.T) {
	h, _ := startHub(t)
	c := NewClient("a", h, nil, domain.NewChatSession("a", "u1", ""), config.WebSocketConfig{})
	h.Register(c)

	msg := &domain.Message{ID: "m2", ChatID: "chat-1", UserID: "u2", Content: "late"}
	page, err := c.Session.SwitchChat(context.Background(), "chat-1", false, func(ctx context.Context, chatID string, isGroup bool) (*domain.MessagePage, error) {
		// the client already watches chat-1 while its page loads
		require.Equal(t, 1, h.WatcherCount("chat-1", false))
		h.Dispatch(mustEvent(t, pubsub.EventNewMessage, "chat-1", false, msg))
		return &domain.MessagePage{Messages: []*domain.Message{{ID: "m1", ChatID: "chat-1"}}}, nil
	})
	require.NoError(t, err)

	assertNoFrame(t, c)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m2", page.Messages[1].ID)
	assert.Len(t, c.Session.Messages(), 2)
}

func TestHub_DroppedClientIsNotWatched(t *testing.T) {
	h, _ := startHub(t)
	c := NewClient("a", h, nil, domain.NewChatSession("a", "u1", ""), config.WebSocketConfig{})
	h.Register(c)
	h.Unregister(c)
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	h.Watch(c, "chat-1", false)
	assert.Equal(t, 0, h.WatcherCount("chat-1", false))
	assert.ErrorIs(t, c.SendMessage(map[string]string{"type": domain.MsgTypePong}), ErrClientClosed)
}
