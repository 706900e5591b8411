package core

import (
	"context"

	"github.com/rs/zerolog"
)

type inbound struct {
	client *Client
	cmd    *Command
}

type request struct {
	fn   func(*Engine)
	done chan struct{}
}

// Hub serializes every engine mutation on one goroutine. Clients feed it
// through their Commands channel; HTTP handlers go through Do.
type Hub struct {
	engine *Engine
	log    *zerolog.Logger

	inbound    chan inbound
	unregister chan *Client
	requests   chan request
	stopped    chan struct{}
}

// NewHub creates a hub driving engine.
func NewHub(engine *Engine, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		engine:     engine,
		log:        logger,
		inbound:    make(chan inbound, 256),
		unregister: make(chan *Client, 64),
		requests:   make(chan request),
		stopped:    make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	h.log.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("hub stopped")
			return
		case c := <-h.unregister:
			h.guard(c, func() { h.engine.Disconnect(c) })
		case in := <-h.inbound:
			h.guard(in.client, func() { h.dispatch(ctx, in.client, in.cmd) })
		case req := <-h.requests:
			h.guard(nil, func() { req.fn(h.engine) })
			close(req.done)
		}
	}
}

// RegisterClient starts forwarding c's commands to the event loop.
func (h *Hub) RegisterClient(c *Client) {
	go h.pump(c)
}

// UnregisterClient drops c's session, if any.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Do runs fn on the event loop and waits for it to return.
func (h *Hub) Do(ctx context.Context, fn func(*Engine)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case h.requests <- req:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	}
}

func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbound <- inbound{client: c, cmd: cmd}:
			case <-h.stopped:
				return
			}
		case <-c.Done():
			return
		case <-h.stopped:
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandIdentify:
		h.engine.Identify(ctx, c, cmd.ParticipantID, cmd.Name, cmd.Token)
	case CommandSendMessage:
		h.engine.HandleMessage(ctx, c, cmd.Text)
	default:
		h.engine.fanout.Send(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

func (h *Hub) guard(c *Client, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.engine.Recover(c, r)
		}
	}()
	fn()
}
