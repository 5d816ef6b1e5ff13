package domain

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSwitchSuperseded is returned by SwitchChat when a newer switch replaced it.
var ErrSwitchSuperseded = errors.New("chat switch superseded by a newer one")

// maxSessionMessages bounds the messages a session keeps for its active chat.
const maxSessionMessages = 500

// PageLoader fetches the latest page of a chat or group conversation.
type PageLoader func(ctx context.Context, chatID string, isGroup bool) (*MessagePage, error)

// WatchFunc points live delivery at a conversation. An empty chatID stops it.
// It is called with the session lock held, so it must not call back into the session.
type WatchFunc func(chatID string, isGroup bool)

// ChatSession is the per-connection chat state: which conversation is
// active, its messages, and whether a switch is in flight.
type ChatSession struct {
	ID       string
	UserID   string
	Username string

	mu           sync.Mutex
	activeChat   string
	isGroup      bool
	messages     []*Message
	loading      bool
	switchSeq    uint64
	cancelSwitch context.CancelFunc
	lastActiveAt time.Time

	// target of the in-flight switch and the live messages seen for it
	pendingChat  string
	pendingGroup bool
	pending      []*Message

	watch WatchFunc
}

// NewChatSession creates an idle session for an authenticated user.
func NewChatSession(id, userID, username string) *ChatSession {
	return &ChatSession{
		ID:           id,
		UserID:       userID,
		Username:     username,
		lastActiveAt: time.Now(),
	}
}

// SetWatcher installs the hook SwitchChat uses to follow live events.
func (s *ChatSession) SetWatcher(watch WatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watch = watch
}

// SwitchChat makes chatID active once load succeeds. A later SwitchChat
// cancels this one's fetch, and a result that arrives after being
// superseded is discarded with ErrSwitchSuperseded. On a load error the
// previous active chat is kept.
//
// Live delivery moves to chatID before the load starts, in switch order.
// Messages that arrive while loading are held and merged into the page on
// commit, so nothing published between the load and the commit is lost.
func (s *ChatSession) SwitchChat(ctx context.Context, chatID string, isGroup bool, load PageLoader) (*MessagePage, error) {
	return s.BeginSwitch(ctx, chatID, isGroup).Complete(load, nil)
}

// PendingSwitch is a switch that has claimed its place in the session's
// switch order but has not loaded yet.
type PendingSwitch struct {
	session *ChatSession
	seq     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	chatID  string
	isGroup bool
}

// BeginSwitch supersedes any earlier switch and moves live delivery to chatID.
// Switches take effect in the order BeginSwitch is called.
func (s *ChatSession) BeginSwitch(ctx context.Context, chatID string, isGroup bool) *PendingSwitch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelSwitch != nil {
		s.cancelSwitch()
	}
	s.switchSeq++
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelSwitch = cancel
	s.loading = true
	s.pendingChat, s.pendingGroup, s.pending = chatID, isGroup, nil
	if s.watch != nil {
		s.watch(chatID, isGroup)
	}

	return &PendingSwitch{
		session: s,
		seq:     s.switchSeq,
		ctx:     fetchCtx,
		cancel:  cancel,
		chatID:  chatID,
		isGroup: isGroup,
	}
}

// ChatID returns the conversation the switch targets.
func (p *PendingSwitch) ChatID() string { return p.chatID }

// IsGroup reports whether the target is a group.
func (p *PendingSwitch) IsGroup() bool { return p.isGroup }

// Complete loads the page and commits the switch unless a newer one began.
// committed runs with the session lock held right after the switch takes
// effect, before any live message for the new chat can be applied; it must
// not call back into the session.
func (p *PendingSwitch) Complete(load PageLoader, committed func(*MessagePage)) (*MessagePage, error) {
	page, err := load(p.ctx, p.chatID, p.isGroup)

	s := p.session
	s.mu.Lock()
	defer s.mu.Unlock()
	p.cancel()

	if p.seq != s.switchSeq {
		return nil, ErrSwitchSuperseded
	}
	s.cancelSwitch = nil
	s.loading = false
	pending := s.pending
	s.pendingChat, s.pending = "", nil

	if err != nil {
		if s.watch != nil {
			s.watch(s.activeChat, s.isGroup)
		}
		return nil, err
	}

	merged := &MessagePage{
		Messages: mergeMessages(page.Messages, pending),
		HasMore:  page.HasMore,
	}
	s.activeChat = p.chatID
	s.isGroup = p.isGroup
	s.messages = append([]*Message(nil), merged.Messages...)
	s.lastActiveAt = time.Now()
	if committed != nil {
		committed(merged)
	}
	return merged, nil
}

// mergeMessages appends the live messages missing from the loaded page.
func mergeMessages(page, live []*Message) []*Message {
	out := append([]*Message(nil), page...)
	seen := make(map[string]struct{}, len(page))
	for _, m := range page {
		seen[m.ID] = struct{}{}
	}
	for _, m := range live {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ActiveChat returns the active conversation, if any.
func (s *ChatSession) ActiveChat() (chatID string, isGroup bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChat, s.isGroup, s.activeChat != ""
}

// IsActive reports whether the given conversation is the active one.
func (s *ChatSession) IsActive(chatID string, isGroup bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChat != "" && s.activeChat == chatID && s.isGroup == isGroup
}

// Loading reports whether a switch is in flight.
func (s *ChatSession) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Messages returns a copy of the active conversation's messages.
func (s *ChatSession) Messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.messages...)
}

// AppendMessage adds a live message when it belongs to the active
// conversation and is not already present. It reports whether the message
// should be pushed now; messages for a conversation still loading are held
// for the switch to merge.
func (s *ChatSession) AppendMessage(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading && msg.ChatID == s.pendingChat && msg.IsGroup == s.pendingGroup {
		for _, m := range s.pending {
			if m.ID == msg.ID {
				return false
			}
		}
		s.pending = append(s.pending, msg)
		return false
	}

	if s.activeChat == "" || msg.ChatID != s.activeChat || msg.IsGroup != s.isGroup {
		return false
	}
	for _, m := range s.messages {
		if m.ID == msg.ID {
			return false
		}
	}
	s.messages = append(s.messages, msg)
	if len(s.messages) > maxSessionMessages {
		s.messages = append([]*Message(nil), s.messages[len(s.messages)-maxSessionMessages:]...)
	}
	return true
}

// ApplyReaction replaces a message's reactions after a toggle.
func (s *ChatSession) ApplyReaction(r *ReactionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ChatID != s.activeChat || r.IsGroup != s.isGroup {
		return false
	}
	for i, m := range s.messages {
		if m.ID == r.MessageID {
			updated := *m
			updated.Reactions = r.Reactions
			s.messages[i] = &updated
			return true
		}
	}
	return false
}

// RemoveMessage drops an unsent message from the active conversation.
func (s *ChatSession) RemoveMessage(chatID string, isGroup bool, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chatID != s.activeChat || isGroup != s.isGroup {
		return false
	}
	for i, m := range s.messages {
		if m.ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Close cancels any in-flight switch.
func (s *ChatSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelSwitch != nil {
		s.cancelSwitch()
		s.cancelSwitch = nil
	}
	s.loading = false
	s.pendingChat, s.pending = "", nil
}

// UpdateActivity records client activity.
func (s *ChatSession) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// LastActiveAt returns the time of the last client activity.
func (s *ChatSession) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}
