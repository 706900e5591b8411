package core

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/modchat-server/internal/history"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain returns every event already queued for c.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofKind(events []*Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// memStore is an in-memory store.Store.
type memStore struct {
	mu       sync.Mutex
	bans     []store.Ban
	words    []string
	messages []store.Message
	failErr  error
}

func (m *memStore) LoadBans(context.Context) ([]store.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Ban(nil), m.bans...), nil
}

func (m *memStore) SaveBans(_ context.Context, bans []store.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.bans = append([]store.Ban(nil), bans...)
	return nil
}

func (m *memStore) LoadBannedWords(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.words...), nil
}

func (m *memStore) SaveBannedWords(_ context.Context, words []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.words = append([]string(nil), words...)
	return nil
}

func (m *memStore) LoadMessages(context.Context) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Message(nil), m.messages...), nil
}

func (m *memStore) SaveMessages(_ context.Context, msgs []store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.messages = append([]store.Message(nil), msgs...)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngine struct {
	*Engine
	backing *memStore
	clock   *testClock
}

func newTestEngine(tb testing.TB, backing *memStore, admins ...string) *testEngine {
	tb.Helper()
	if backing == nil {
		backing = &memStore{}
	}
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	ctx := context.Background()

	mod, err := moderation.New(ctx, backing, backing, moderation.WithClock(clock.Now))
	if err != nil {
		tb.Fatalf("moderation.New: %v", err)
	}
	hist, err := history.New(ctx, backing, history.DefaultLimit)
	if err != nil {
		tb.Fatalf("history.New: %v", err)
	}

	e := NewEngine(mod, hist, Options{
		AdminIDs: admins,
		Now:      clock.Now,
		Rand:     rand.New(rand.NewPCG(1, 2)),
	})
	return &testEngine{Engine: e, backing: backing, clock: clock}
}

// join identifies a fresh client and discards its welcome and history events.
func (te *testEngine) join(t *testing.T, participantID, name string) *Client {
	t.Helper()
	c := NewClient("conn-" + participantID + "-" + name)
	te.Identify(context.Background(), c, participantID, name, "")
	if _, ok := te.sessions.Get(c); !ok {
		t.Fatalf("join %s: session not registered", participantID)
	}
	drain(c)
	return c
}

func (te *testEngine) say(c *Client, text string) {
	te.HandleMessage(context.Background(), c, text)
}
