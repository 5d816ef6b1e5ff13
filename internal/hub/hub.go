package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

// Hub tracks connected clients and the conversation each one is watching,
// and routes conversation events to them.
type Hub struct {
	clients       map[string]*Client            // clientID -> client
	conversations map[string]map[string]*Client // channel -> clientID -> client
	watching      map[string]string             // clientID -> channel
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}
	mu            sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		conversations: make(map[string]map[string]*Client),
		watching:      make(map[string]string),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
	}
}

// Run owns client registration until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str("client_id", client.ID).Str(log.FieldUserID, client.Session.UserID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.unwatchLocked(client.ID)
			delete(h.clients, client.ID)
			client.close()
			h.mu.Unlock()
			// outside h.mu: sessions call Watch while holding their own lock
			client.Session.Close()
			l.Debug().Str("client_id", client.ID).Msg("client unregistered")
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Watch points the client at a conversation, replacing the previous one.
// An empty chatID stops watching. A client the hub already dropped is ignored.
func (h *Hub) Watch(client *Client, chatID string, isGroup bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unwatchLocked(client.ID)
	if chatID == "" || client.isClosed() {
		return
	}

	channel := pubsub.ConversationChannel(chatID, isGroup)
	if _, ok := h.conversations[channel]; !ok {
		h.conversations[channel] = make(map[string]*Client)
	}
	h.conversations[channel][client.ID] = client
	h.watching[client.ID] = channel
}

func (h *Hub) unwatchLocked(clientID string) {
	channel, ok := h.watching[clientID]
	if !ok {
		return
	}
	if watchers, ok := h.conversations[channel]; ok {
		delete(watchers, clientID)
		if len(watchers) == 0 {
			delete(h.conversations, channel)
		}
	}
	delete(h.watching, clientID)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WatcherCount returns how many clients watch the conversation.
func (h *Hub) WatcherCount(chatID string, isGroup bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[pubsub.ConversationChannel(chatID, isGroup)])
}

// Listen subscribes to every chat and group channel and dispatches events
// until ctx is done.
func (h *Hub) Listen(ctx context.Context, sub pubsub.Subscriber) error {
	for _, pattern := range []string{pubsub.PatternAllChats, pubsub.PatternAllGroups} {
		eventCh, err := sub.SubscribePattern(ctx, pattern)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
		}
		go h.handleEvents(ctx, eventCh)
	}
	return nil
}

func (h *Hub) handleEvents(ctx context.Context, eventCh <-chan *pubsub.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			h.Dispatch(event)
		}
	}
}

// Dispatch applies an event to the sessions watching its conversation and
// forwards the matching frame to their sockets.
func (h *Hub) Dispatch(event *pubsub.Event) {
	l := log.L()

	switch event.Type {
	case pubsub.EventNewMessage:
		var msg domain.Message
		if err := event.UnmarshalPayload(&msg); err != nil {
			l.Error().Err(err).Msg("failed to unmarshal new_message")
			return
		}
		h.forEachWatcher(event, func(c *Client) interface{} {
			if !c.Session.AppendMessage(&msg) {
				return nil
			}
			return &domain.NewMessageOut{Type: domain.MsgTypeNewMessage, Message: &msg}
		})

	case pubsub.EventMessageReacted:
		var result domain.ReactionResult
		if err := event.UnmarshalPayload(&result); err != nil {
			l.Error().Err(err).Msg("failed to unmarshal message_reacted")
			return
		}
		h.forEachWatcher(event, func(c *Client) interface{} {
			if !c.Session.IsActive(event.ChatID, event.IsGroup) {
				return nil
			}
			c.Session.ApplyReaction(&result)
			return &domain.MessageReactedOut{Type: domain.MsgTypeMessageReacted, Reaction: &result}
		})

	case pubsub.EventMessageUnsent:
		var payload pubsub.MessageUnsentPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			l.Error().Err(err).Msg("failed to unmarshal message_unsent")
			return
		}
		h.forEachWatcher(event, func(c *Client) interface{} {
			if !c.Session.IsActive(event.ChatID, event.IsGroup) {
				return nil
			}
			c.Session.RemoveMessage(payload.ChatID, payload.IsGroup, payload.MessageID)
			return &domain.MessageUnsentOut{
				Type:      domain.MsgTypeMessageUnsent,
				MessageID: payload.MessageID,
				ChatID:    payload.ChatID,
				IsGroup:   payload.IsGroup,
			}
		})

	default:
		l.Debug().Str("event_type", event.Type).Msg("ignoring event")
	}
}

// forEachWatcher sends frame(c) to each client watching the event's
// conversation; frame returns nil to skip a client. Clients that cannot keep
// up are dropped.
func (h *Hub) forEachWatcher(event *pubsub.Event, frame func(*Client) interface{}) {
	h.mu.RLock()
	watchers := make([]*Client, 0, len(h.conversations[event.Channel()]))
	for _, c := range h.conversations[event.Channel()] {
		watchers = append(watchers, c)
	}
	h.mu.RUnlock()

	for _, c := range watchers {
		out := frame(c)
		if out == nil {
			continue
		}
		data, err := json.Marshal(out)
		if err != nil {
			continue
		}
		if err := c.sendRaw(data); err != nil {
			if errors.Is(err, ErrClientClosed) {
				continue
			}
			l := log.L()
			l.Warn().Str("client_id", c.ID).Msg("dropping slow client")
			go h.Unregister(c)
		}
	}
}
