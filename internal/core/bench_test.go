package core

import (
	"context"
	"strconv"
	"testing"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	te := newTestEngine(b, nil)
	hub := NewHub(te.Engine, nil)
	go hub.Run(ctx)

	sender := NewClient("sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandIdentify, ParticipantID: "sender", Name: "sender"}
	go func() {
		for range sender.Events {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		id := "c" + strconv.Itoa(i)
		c := NewClient(id)
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandIdentify, ParticipantID: id, Name: id}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	mustEventB(b, target, EventHistory)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Kind: CommandSendMessage, Text: "payload"}
		mustEventB(b, target, EventMessage)
	}
}

func mustEventB(b *testing.B, c *Client, kind EventKind) {
	b.Helper()
	for ev := range c.Events {
		if ev.Kind == kind {
			return
		}
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
