// Package moderation owns the ban list, the mute table and the banned-word list.
//
// Bans and banned words are persisted through store interfaces and reloaded at
// startup; mutes live only in memory and expire lazily on access.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/modchat-server/internal/store"
)

// Store is the moderation state of one chat session.
type Store struct {
	mu    sync.RWMutex
	bans  []store.Ban
	mutes map[string]time.Time
	words []string

	banStore  store.BanStore
	wordStore store.WordStore
	now       func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New loads bans and banned words from their stores.
func New(ctx context.Context, bans store.BanStore, words store.WordStore, opts ...Option) (*Store, error) {
	s := &Store{
		mutes:     make(map[string]time.Time),
		banStore:  bans,
		wordStore: words,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	loadedBans, err := bans.LoadBans(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bans: %w", err)
	}
	for _, b := range loadedBans {
		s.upsertBan(b)
	}

	loadedWords, err := words.LoadBannedWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load banned words: %w", err)
	}
	for _, w := range loadedWords {
		if strings.TrimSpace(w) != "" && s.wordIndex(w) < 0 {
			s.words = append(s.words, w)
		}
	}

	return s, nil
}

// IsBanned reports whether a ban record exists for the participant.
func (s *Store) IsBanned(participantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.banIndex(participantID) >= 0
}

// GetBan returns the ban record for a participant.
func (s *Store) GetBan(participantID string) (store.Ban, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.banIndex(participantID); i >= 0 {
		return s.bans[i], true
	}
	return store.Ban{}, false
}

// Ban creates a ban record, or refreshes display name, reason and timestamp of
// an existing one. The returned error is a *store.PersistenceError when the durable
// copy could not be written; the ban is in effect regardless.
func (s *Store) Ban(ctx context.Context, participantID, displayName, reason string) (store.Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := store.Ban{
		DisplayName:   displayName,
		ParticipantID: participantID,
		Reason:        reason,
		Timestamp:     s.now().UnixMilli(),
	}
	s.upsertBan(rec)

	return rec, store.WrapPersist(store.CollectionBans, s.banStore.SaveBans(ctx, s.snapshotBans()))
}

// Unban removes the ban record for a participant. ok is false when none existed,
// in which case nothing is written.
func (s *Store) Unban(ctx context.Context, participantID string) (rec store.Ban, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.banIndex(participantID)
	if i < 0 {
		return store.Ban{}, false, nil
	}
	rec = s.bans[i]
	s.bans = append(s.bans[:i], s.bans[i+1:]...)

	return rec, true, store.WrapPersist(store.CollectionBans, s.banStore.SaveBans(ctx, s.snapshotBans()))
}

// Bans returns a copy of the ban list in insertion order.
func (s *Store) Bans() []store.Ban {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotBans()
}

// Mute silences a participant for d. A later call replaces the earlier one.
func (s *Store) Mute(participantID string, d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := s.now().Add(d)
	s.mutes[participantID] = until
	return until
}

// IsMuted returns the remaining mute time. Expired entries are evicted on the way.
func (s *Store) IsMuted(participantID string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, until := range s.mutes {
		if !now.Before(until) {
			delete(s.mutes, id)
		}
	}

	until, ok := s.mutes[participantID]
	if !ok {
		return 0, false
	}
	return until.Sub(now), true
}

// AddWord appends a banned word. Words are compared case-insensitively; added
// is false when the word was already present.
func (s *Store) AddWord(ctx context.Context, word string) (added bool, err error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return false, ErrEmptyWord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wordIndex(word) >= 0 {
		return false, nil
	}
	s.words = append(s.words, word)

	return true, store.WrapPersist(store.CollectionBannedWords, s.wordStore.SaveBannedWords(ctx, s.snapshotWords()))
}

// RemoveWord deletes a banned word, case-insensitively.
func (s *Store) RemoveWord(ctx context.Context, word string) (removed bool, err error) {
	word = strings.TrimSpace(word)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.wordIndex(word)
	if i < 0 {
		return false, nil
	}
	s.words = append(s.words[:i], s.words[i+1:]...)

	return true, store.WrapPersist(store.CollectionBannedWords, s.wordStore.SaveBannedWords(ctx, s.snapshotWords()))
}

// BannedWords returns a copy of the banned-word list.
func (s *Store) BannedWords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotWords()
}

// FindBannedWord runs the AutoMod filter against the current word list.
func (s *Store) FindBannedWord(content string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return FindBannedWord(content, s.words)
}

func (s *Store) upsertBan(rec store.Ban) {
	if i := s.banIndex(rec.ParticipantID); i >= 0 {
		s.bans[i] = rec
		return
	}
	s.bans = append(s.bans, rec)
}

func (s *Store) banIndex(participantID string) int {
	for i, b := range s.bans {
		if b.ParticipantID == participantID {
			return i
		}
	}
	return -1
}

func (s *Store) wordIndex(word string) int {
	for i, w := range s.words {
		if strings.EqualFold(w, word) {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotBans() []store.Ban {
	out := make([]store.Ban, len(s.bans))
	copy(out, s.bans)
	return out
}

func (s *Store) snapshotWords() []string {
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}
