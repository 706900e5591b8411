package core

import "sync"

// Client is one live connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 64),
		done:     make(chan struct{}),
	}
}

// Close asks the transport to drop the connection. Only the first reason is kept.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Done is closed once the core has asked for the connection to be dropped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason is valid after Done is closed.
func (c *Client) CloseReason() string {
	<-c.done
	return c.reason
}

// send queues ev without blocking. It reports false when the buffer is full.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
