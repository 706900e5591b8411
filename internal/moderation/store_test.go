package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/modchat-server/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	bans    []store.Ban
	words   []string
	saves   int
	failErr error
}

func (m *memStore) LoadBans(context.Context) ([]store.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Ban(nil), m.bans...), nil
}

func (m *memStore) SaveBans(_ context.Context, bans []store.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
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
	m.saves++
	if m.failErr != nil {
		return m.failErr
	}
	m.words = append([]string(nil), words...)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T, backing *memStore) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s, err := New(context.Background(), backing, backing, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func TestBanThenUnban(t *testing.T) {
	backing := &memStore{}
	s, _ := newTestStore(t, backing)
	ctx := context.Background()

	rec, err := s.Ban(ctx, "u1", "alice", "spam")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.DisplayName)
	assert.True(t, s.IsBanned("u1"))
	require.Len(t, backing.bans, 1)

	removed, ok, err := s.Unban(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", removed.ParticipantID)
	assert.False(t, s.IsBanned("u1"))
	assert.Empty(t, backing.bans)
	assert.Empty(t, s.Bans())
}

func TestUnbanUnknownDoesNotWrite(t *testing.T) {
	backing := &memStore{}
	s, _ := newTestStore(t, backing)

	_, ok, err := s.Unban(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, backing.saves)
}

func TestDuplicateBanRefreshesRecord(t *testing.T) {
	backing := &memStore{}
	s, clock := newTestStore(t, backing)
	ctx := context.Background()

	_, err := s.Ban(ctx, "u1", "alice", "first")
	require.NoError(t, err)
	_, err = s.Ban(ctx, "u2", "bob", "other")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	rec, err := s.Ban(ctx, "u1", "alice2", "second")
	require.NoError(t, err)

	bans := s.Bans()
	require.Len(t, bans, 2)
	assert.Equal(t, rec, bans[0], "refreshed record keeps its position")
	assert.Equal(t, "second", bans[0].Reason)
	assert.Equal(t, clock.Now().UnixMilli(), bans[0].Timestamp)
}

func TestLoadDeduplicatesBans(t *testing.T) {
	backing := &memStore{bans: []store.Ban{
		{ParticipantID: "u1", Reason: "old"},
		{ParticipantID: "u1", Reason: "new"},
	}}
	s, _ := newTestStore(t, backing)

	bans := s.Bans()
	require.Len(t, bans, 1)
	assert.Equal(t, "new", bans[0].Reason)
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	backing := &memStore{failErr: errors.New("disk full")}
	s, _ := newTestStore(t, backing)

	_, err := s.Ban(context.Background(), "u1", "alice", "spam")
	require.Error(t, err)

	var pErr *store.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, store.CollectionBans, pErr.Collection)
	assert.True(t, s.IsBanned("u1"))

	added, err := s.AddWord(context.Background(), "darn")
	assert.True(t, added)
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, []string{"darn"}, s.BannedWords())
}

func TestMuteExpiresLazily(t *testing.T) {
	s, clock := newTestStore(t, &memStore{})

	s.Mute("u1", 30*time.Second)

	remaining, ok := s.IsMuted("u1")
	require.True(t, ok)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 30*time.Second)

	clock.Advance(29 * time.Second)
	remaining, ok = s.IsMuted("u1")
	require.True(t, ok)
	assert.Equal(t, time.Second, remaining)

	clock.Advance(time.Second)
	_, ok = s.IsMuted("u1")
	assert.False(t, ok)
	assert.Empty(t, s.mutes, "expired entry is evicted")
}

func TestMuteLastCallWins(t *testing.T) {
	s, _ := newTestStore(t, &memStore{})

	s.Mute("u1", time.Hour)
	s.Mute("u1", time.Minute)

	remaining, ok := s.IsMuted("u1")
	require.True(t, ok)
	assert.Equal(t, time.Minute, remaining)
}

func TestBannedWords(t *testing.T) {
	backing := &memStore{words: []string{"darn", "heck"}}
	s, _ := newTestStore(t, backing)
	ctx := context.Background()

	added, err := s.AddWord(ctx, "DARN")
	require.NoError(t, err)
	assert.False(t, added, "case-insensitive duplicate")

	_, err = s.AddWord(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyWord)

	added, err = s.AddWord(ctx, "golly")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"darn", "heck", "golly"}, backing.words)

	removed, err := s.RemoveWord(ctx, "Heck")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"darn", "golly"}, s.BannedWords())

	removed, err = s.RemoveWord(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, removed)

	word, ok := s.FindBannedWord("oh GOLLY gosh")
	require.True(t, ok)
	assert.Equal(t, "golly", word)
}
