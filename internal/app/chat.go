package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	ChatTopic = "chat"
	chatType  = "chat"
	// DedupeWindow drops a repeat of the same text from the same sender.
	DedupeWindow = 2 * time.Second
)

// ChatPayload is the wire format of a chat message.
type ChatPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SendError keeps the text the user typed so the input can be restored.
type SendError struct {
	Draft string
	Err   error
}

func (e *SendError) Error() string { return fmt.Sprintf("chat send: %v", e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

type dedupeKey struct {
	sender domain.ParticipantID
	text   string
}

// Chat is the append-only session chat log.
type Chat struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	pub     core.DataPublisher
	limiter *RateLimiter
	self    domain.Participant

	messages  []domain.ChatMessage
	seen      map[dedupeKey]time.Time
	listeners []func(domain.ChatMessage)
}

func NewChat(clock clockwork.Clock, pub core.DataPublisher, limiter *RateLimiter) *Chat {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Chat{
		clock:   clock,
		pub:     pub,
		limiter: limiter,
		seen:    make(map[dedupeKey]time.Time),
	}
}

// SetLocal tells the chat who the local sender is once the transport
// assigned an identity.
func (c *Chat) SetLocal(p domain.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = p
}

func (c *Chat) OnMessage(fn func(domain.ChatMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Send appends the local echo, then publishes. On a publish failure the echo
// stays in the log marked Failed and the returned *SendError carries the draft.
func (c *Chat) Send(ctx context.Context, text string) (domain.ChatMessage, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}

	c.mu.Lock()
	self := c.self
	c.mu.Unlock()
	if !c.limiter.Allow(self.ID) {
		return domain.ChatMessage{}, &SendError{Draft: text, Err: domain.ErrRateLimited}
	}

	now := c.clock.Now()
	payload, err := json.Marshal(ChatPayload{Type: chatType, Message: body, Timestamp: now.UnixMilli()})
	if err != nil {
		return domain.ChatMessage{}, &SendError{Draft: text, Err: err}
	}
	msg := domain.ChatMessage{
		ID:         domain.NewMessageID(self.ID, now),
		SenderID:   self.ID,
		SenderName: self.Name,
		Text:       body,
		Timestamp:  now.UnixMilli(),
		Local:      true,
	}
	c.appendMessage(msg)

	if c.pub == nil {
		return c.markFailed(msg), &SendError{Draft: text, Err: domain.ErrNotConnected}
	}
	if err := c.pub.PublishData(ctx, ChatTopic, payload, true); err != nil {
		log.Warn().Err(err).Str("module", "app.chat").Str("id", msg.ID).Msg("chat publish failed")
		return c.markFailed(msg), &SendError{Draft: text, Err: err}
	}
	return msg, nil
}

// Receive handles an inbound data packet. It reports whether a message was
// appended.
func (c *Chat) Receive(payload []byte, sender domain.Participant, topic string) (domain.ChatMessage, bool) {
	if topic != ChatTopic {
		return domain.ChatMessage{}, false
	}
	var p ChatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Debug().Err(err).Str("module", "app.chat").Str("from", string(sender.ID)).Msg("malformed chat payload")
		return domain.ChatMessage{}, false
	}
	if p.Type != chatType || strings.TrimSpace(p.Message) == "" {
		return domain.ChatMessage{}, false
	}

	now := c.clock.Now()
	c.mu.Lock()
	if sender.Local || (c.self.ID != "" && sender.ID == c.self.ID) {
		c.mu.Unlock()
		return domain.ChatMessage{}, false
	}
	for k, at := range c.seen {
		if now.Sub(at) > DedupeWindow {
			delete(c.seen, k)
		}
	}
	key := dedupeKey{sender: sender.ID, text: p.Message}
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		return domain.ChatMessage{}, false
	}
	c.seen[key] = now
	c.mu.Unlock()

	ts := p.Timestamp
	if ts == 0 {
		ts = now.UnixMilli()
	}
	name := sender.Name
	if name == "" {
		name = string(sender.ID)
	}
	msg := domain.ChatMessage{
		ID:         domain.NewMessageID(sender.ID, time.UnixMilli(ts)),
		SenderID:   sender.ID,
		SenderName: name,
		Text:       p.Message,
		Timestamp:  ts,
	}
	c.appendMessage(msg)
	return msg, true
}

func (c *Chat) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *Chat) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *Chat) markFailed(msg domain.ChatMessage) domain.ChatMessage {
	msg.Failed = true
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == msg.ID {
			c.messages[i].Failed = true
			break
		}
	}
	fns := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
	return msg
}

func (c *Chat) appendMessage(msg domain.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	fns := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}
