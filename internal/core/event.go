package core

import "github.com/vovakirdan/modchat-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventWelcome confirms the identity bound to the connection.
	EventWelcome EventKind = iota
	// EventHistory delivers the message history, replacing whatever the client holds.
	EventHistory
	// EventMessage delivers a chat or system message to every participant.
	EventMessage
	// EventNotice is a system notice, usually for the caller only.
	EventNotice
	// EventMention tells a participant they were @mentioned.
	EventMention
	// EventBanned tells a participant they are banned.
	EventBanned
	// EventRoster lists live sessions.
	EventRoster
	// EventStatus carries a server status line.
	EventStatus
	// EventUpdate asks clients to reload.
	EventUpdate
	// EventError notifies clients about a protocol or domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	ParticipantID string // EventWelcome
	User          string // EventWelcome
	Token         string // EventWelcome

	Message  store.Message   // EventMessage
	Messages []store.Message // EventHistory

	Text    string // EventNotice, EventBanned
	Rolls   []int  // EventNotice from /roll
	Mention *Mention
	Roster  []RosterEntry
	Status  string
	Error   *CoreError
}

// Mention is delivered privately to a participant named with @name.
type Mention struct {
	From    string
	Message string
}

// RosterEntry describes one live session.
type RosterEntry struct {
	ParticipantID string
	User          string
}
