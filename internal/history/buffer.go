// Package history keeps the bounded, persisted log of delivered chat messages.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/vovakirdan/modchat-server/internal/store"
)

// DefaultLimit is the number of messages kept when no limit is configured.
const DefaultLimit = 100

// Buffer is an append-only FIFO of at most limit messages.
type Buffer struct {
	mu       sync.RWMutex
	messages []store.Message
	limit    int
	store    store.HistoryStore
}

// New loads persisted history, keeping only the newest limit entries.
func New(ctx context.Context, st store.HistoryStore, limit int) (*Buffer, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	loaded, err := st.LoadMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	b := &Buffer{limit: limit, store: st}
	b.messages = truncate(loaded, limit)
	return b, nil
}

// Append pushes msg to the tail, evicts from the head down to the limit and
// persists the whole buffer.
func (b *Buffer) Append(ctx context.Context, msg store.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Build the next slice before publishing it so readers never see a
	// partially truncated buffer.
	next := make([]store.Message, 0, min(len(b.messages)+1, b.limit))
	next = append(next, truncate(b.messages, b.limit-1)...)
	next = append(next, msg)
	b.messages = next

	return b.persist(ctx)
}

// Recent returns up to n of the newest messages, oldest first. n <= 0 means the limit.
func (b *Buffer) Recent(n int) []store.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.limit {
		n = b.limit
	}
	tail := truncate(b.messages, n)
	out := make([]store.Message, len(tail))
	copy(out, tail)
	return out
}

// Purge empties the buffer and persists.
func (b *Buffer) Purge(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = nil
	return b.persist(ctx)
}

// RemoveBy deletes every message authored by participantID and returns how many were removed.
// Nothing is written when no message matched.
func (b *Buffer) RemoveBy(ctx context.Context, participantID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]store.Message, 0, len(b.messages))
	for _, m := range b.messages {
		if m.ParticipantID != participantID {
			kept = append(kept, m)
		}
	}
	removed := len(b.messages) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	b.messages = kept

	return removed, b.persist(ctx)
}

// CountBy returns the number of non-system messages authored by participantID.
func (b *Buffer) CountBy(participantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, m := range b.messages {
		if !m.System && m.ParticipantID == participantID {
			n++
		}
	}
	return n
}

// LastNameOf returns the most recent display name used by participantID.
func (b *Buffer) LastNameOf(participantID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := len(b.messages) - 1; i >= 0; i-- {
		if m := b.messages[i]; !m.System && m.ParticipantID == participantID {
			return m.DisplayName, true
		}
	}
	return "", false
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.messages)
}

func (b *Buffer) persist(ctx context.Context) error {
	snapshot := make([]store.Message, len(b.messages))
	copy(snapshot, b.messages)
	return store.WrapPersist(store.CollectionMessages, b.store.SaveMessages(ctx, snapshot))
}

func truncate(messages []store.Message, n int) []store.Message {
	if n <= 0 {
		return nil
	}
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}
