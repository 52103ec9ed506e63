// Package queue publishes submission notifications to downstream consumers.
package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// NopClient drops every message. It is used when no queue is configured.
type NopClient struct{}

// Send does nothing.
func (NopClient) Send(ctx context.Context, msg Message) error {
	return ctx.Err()
}

// MemoryClient keeps sent messages in order.
type MemoryClient struct {
	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (c *MemoryClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (c *MemoryClient) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

var (
	_ Client = NopClient{}
	_ Client = (*MemoryClient)(nil)
)
