package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	once    sync.Once
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

func (s *memorySubscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryPubSub is an in-process PubSub for single-instance deployments and tests.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryPubSub creates an in-process PubSub.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string][]*memorySubscription)}
}

// Publish delivers the event to every matching subscriber without blocking.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, subs := range m.subs {
		for _, sub := range subs {
			if !sub.matches(channel) {
				continue
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	return nil
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.add(ctx, channel, false), nil
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.add(ctx, pattern, true), nil
}

func (m *MemoryPubSub) add(ctx context.Context, key string, pattern bool) <-chan *Event {
	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, subscriberBuffer),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.close()
		return sub.ch
	}
	m.subs[key] = append(m.subs[key], sub)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.remove(sub)
	}()

	return sub.ch
}

func (m *MemoryPubSub) remove(target *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[target.key]
	for i, sub := range subs {
		if sub == target {
			m.subs[target.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[target.key]) == 0 {
		delete(m.subs, target.key)
	}
	target.close()
}

// Unsubscribe closes every subscription registered under channel.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs[channel] {
		sub.close()
	}
	delete(m.subs, channel)
	return nil
}

// Close closes all subscriptions.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, subs := range m.subs {
		for _, sub := range subs {
			sub.close()
		}
		delete(m.subs, key)
	}
	m.closed = true
	return nil
}
