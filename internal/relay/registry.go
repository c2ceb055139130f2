// Package relay fans chat notifications out to connected SSE clients. All
// state is in memory and lost on restart; delivery is best effort.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBuffer = 16

// Subscription is one client's handle on a conversation stream. Events
// arrive on C; the channel closes when the subscription is replaced or the
// registry shuts down.
type Subscription struct {
	ID           uuid.UUID
	Conversation string
	User         string
	C            <-chan json.RawMessage

	ch chan json.RawMessage
}

// Registry routes published payloads to subscribers. The zero value is not
// usable; construct with NewRegistry and inject it where needed.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]map[string]*Subscription
	buffer int
	closed bool
}

// Option configures the registry.
type Option func(*Registry)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		subs:   make(map[string]map[string]*Subscription),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers a user on a conversation. A conversation/user pair
// has at most one active subscription: subscribing again closes the
// previous one.
func (r *Registry) Subscribe(conversation, user string) *Subscription {
	sub := &Subscription{
		ID:           uuid.New(),
		Conversation: conversation,
		User:         user,
		ch:           make(chan json.RawMessage, r.buffer),
	}
	sub.C = sub.ch

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		close(sub.ch)
		return sub
	}

	users, ok := r.subs[conversation]
	if !ok {
		users = make(map[string]*Subscription)
		r.subs[conversation] = users
	}
	if prev, ok := users[user]; ok {
		close(prev.ch)
		zap.L().Debug("replaced subscription",
			zap.String("conversation", conversation),
			zap.String("user", user))
	}
	users[user] = sub

	return sub
}

// Unsubscribe removes a subscription and closes its channel. Stale handles
// (already replaced) are ignored.
func (r *Registry) Unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.subs[sub.Conversation]
	if !ok {
		return
	}
	current, ok := users[sub.User]
	if !ok || current.ID != sub.ID {
		return
	}
	close(current.ch)
	delete(users, sub.User)
	if len(users) == 0 {
		delete(r.subs, sub.Conversation)
	}
}

// Publish sends a payload to every subscriber of a conversation and returns
// how many received it. Sends never block: a subscriber with a full buffer
// drops the event.
func (r *Registry) Publish(conversation string, payload json.RawMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0
	}

	delivered := 0
	for user, sub := range r.subs[conversation] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			zap.L().Warn("dropping event for slow subscriber",
				zap.String("conversation", conversation),
				zap.String("user", user))
		}
	}
	return delivered
}

// Subscribers reports the number of active subscriptions on a conversation.
func (r *Registry) Subscribers(conversation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[conversation])
}

// Close shuts the registry down and closes every subscriber channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, users := range r.subs {
		for _, sub := range users {
			close(sub.ch)
		}
	}
	r.subs = make(map[string]map[string]*Subscription)
}
