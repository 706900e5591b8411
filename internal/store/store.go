package store

import (
	"context"
	"errors"
)

// Ban represents a persisted ban record. At most one record exists per participant.
type Ban struct {
	DisplayName   string `json:"display_name"`
	ParticipantID string `json:"participant_id"`
	Reason        string `json:"reason"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
}

// MessageType tags system messages with the action that produced them.
// Chat messages leave it empty.
type MessageType string

const (
	MessageTypeBan   MessageType = "ban"
	MessageTypeUnban MessageType = "unban"
	MessageTypeSay   MessageType = "say"
)

// Message represents a chat message kept in the persisted history.
type Message struct {
	ParticipantID string      `json:"participant_id"`
	DisplayName   string      `json:"display_name"`
	Text          string      `json:"text"`
	System        bool        `json:"system"`
	Type          MessageType `json:"type,omitempty"`
	Timestamp     int64       `json:"timestamp"` // unix milliseconds
}

// Collection names used by every backend.
const (
	CollectionBans        = "bans"
	CollectionBannedWords = "bannedwords"
	CollectionMessages    = "messages"
)

// ErrUnknownDriver is returned when the configured storage driver is not supported.
var ErrUnknownDriver = errors.New("unknown storage driver")

// BanStore handles ban list persistence.
type BanStore interface {
	// LoadBans returns the persisted ban list, empty if nothing was stored yet.
	LoadBans(ctx context.Context) ([]Ban, error)

	// SaveBans rewrites the whole ban list.
	SaveBans(ctx context.Context, bans []Ban) error
}

// WordStore handles banned-word persistence.
type WordStore interface {
	// LoadBannedWords returns the persisted banned-word list in insertion order.
	LoadBannedWords(ctx context.Context) ([]string, error)

	// SaveBannedWords rewrites the whole banned-word list.
	SaveBannedWords(ctx context.Context, words []string) error
}

// HistoryStore handles message history persistence.
type HistoryStore interface {
	// LoadMessages returns the persisted history, oldest first.
	LoadMessages(ctx context.Context) ([]Message, error)

	// SaveMessages rewrites the whole history.
	SaveMessages(ctx context.Context, messages []Message) error
}

// Store aggregates all storage interfaces.
type Store interface {
	BanStore
	WordStore
	HistoryStore

	// Close releases the underlying storage.
	Close() error
}
