// Package channel defines the output-channel abstraction: payload types,
// the sender contract, and the error taxonomy that separates transient
// delivery failures from permanent ones.
package channel

import (
	"context"
	"fmt"
	"sync"
)

// Payload is one rendered, channel-specific message. Payloads are
// ephemeral: built by a renderer and consumed immediately by the matching
// sender.
type Payload interface {
	// Channel returns the name of the channel this payload targets.
	Channel() string
}

// ChatPayload is one rendered chat message.
type ChatPayload struct {
	Text string `json:"text"`
}

func (ChatPayload) Channel() string { return "chat" }

// EmailPayload addresses one transactional template send.
type EmailPayload struct {
	TemplateID      string            `json:"template_id"`
	Recipient       string            `json:"recipient"`
	Personalization map[string]string `json:"personalization"`
}

func (EmailPayload) Channel() string { return "email" }

// RetryableError is a transient delivery failure (timeout, 5xx, 429).
// It is the only error kind allowed to escape the orchestrating handler,
// so the platform's retry machinery is engaged.
type RetryableError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s delivery failed (retryable): %s: %s", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s delivery failed (retryable): %s", e.Channel, e.Reason)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError is a permanent delivery failure (4xx, malformed payload).
// Retrying cannot succeed; it is logged and the event completes anyway.
type FatalError struct {
	Channel string
	Reason  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s delivery failed (fatal): %s", e.Channel, e.Reason)
}

// Sender performs the one outbound network call for a channel. No batching:
// one payload, one call.
type Sender interface {
	// Name returns the channel name this sender is registered under.
	Name() string
	// Send delivers the payload, returning nil, a *RetryableError or a
	// *FatalError.
	Send(ctx context.Context, p Payload) error
}

// Registry maps channel names to their senders.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds a sender. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.senders[s.Name()]; exists {
		panic(fmt.Sprintf("channel registry: duplicate name %q", s.Name()))
	}
	r.senders[s.Name()] = s
}

// Get returns the sender for the given channel name.
func (r *Registry) Get(name string) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[name]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %q", name)
	}
	return s, nil
}

// Names returns all registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.senders))
	for k := range r.senders {
		out = append(out, k)
	}
	return out
}
