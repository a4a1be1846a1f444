package chathub

import (
	"sync"

	"mentorbridge/backend/internal/models"

	"github.com/google/uuid"
)

// Client is one realtime connection of an authenticated user. The hub only queues events on
// it; the transport behind it does the writing.
type Client interface {
	ID() string
	UserID() uint
	Transport() string
	// Send queues ev without blocking and reports false when the queue is full or closed.
	Send(ev models.RealtimeEvent) bool
	Close()
}

// ChannelClient is a Client backed by a buffered queue. Transports embed it and drain Events.
type ChannelClient struct {
	id        string
	userID    uint
	transport string

	mu     sync.Mutex
	closed bool
	send   chan models.RealtimeEvent
}

// NewChannelClient returns a queue-only client, useful for in-process subscribers.
func NewChannelClient(userID uint, buffer int) *ChannelClient {
	return newChannelClient(userID, "channel", buffer)
}

func newChannelClient(userID uint, transport string, buffer int) *ChannelClient {
	return &ChannelClient{
		id:        uuid.NewString(),
		userID:    userID,
		transport: transport,
		send:      make(chan models.RealtimeEvent, buffer),
	}
}

func (c *ChannelClient) ID() string        { return c.id }
func (c *ChannelClient) UserID() uint      { return c.userID }
func (c *ChannelClient) Transport() string { return c.transport }

func (c *ChannelClient) Send(ev models.RealtimeEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Events is closed once the client is closed.
func (c *ChannelClient) Events() <-chan models.RealtimeEvent {
	return c.send
}

func (c *ChannelClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
