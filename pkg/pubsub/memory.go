package pubsub

import (
	"context"
	"sync"
)

type memorySub struct {
	ch       chan *Event
	done     chan struct{}
	stopOnce sync.Once
}

func (s *memorySub) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// MemoryPubSub is an in-process bus for single-node deployments and tests.
// Every subscriber of a topic receives every event published after it subscribed.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	buffer int
	closed bool
}

// NewMemoryPubSub creates an in-process PubSub.
func NewMemoryPubSub(buffer int) *MemoryPubSub {
	return &MemoryPubSub{
		subs:   make(map[string][]*memorySub),
		buffer: buffer,
	}
}

// Publish hands event to every subscriber of topic, waiting on full buffers.
func (m *MemoryPubSub) Publish(ctx context.Context, topic string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	for _, sub := range m.subs[topic] {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a new subscriber on topic.
func (m *MemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	sub := &memorySub{
		ch:   make(chan *Event, m.buffer),
		done: make(chan struct{}),
	}
	m.subs[topic] = append(m.subs[topic], sub)

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		sub.stop()
		m.remove(topic, sub)
	}()

	return sub.ch, nil
}

func (m *MemoryPubSub) remove(topic string, sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[topic]
	for i, s := range subs {
		if s == sub {
			m.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close closes every subscriber channel.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for topic, subs := range m.subs {
		for _, sub := range subs {
			sub.stop()
			close(sub.ch)
		}
		delete(m.subs, topic)
	}
	return nil
}
