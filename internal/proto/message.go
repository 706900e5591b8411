package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeMsg   = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventWelcome = "welcome"
	EventHistory = "history"
	EventMessage = "message"
	EventNotice  = "notice"
	EventMention = "mention"
	EventBanned  = "banned"
	EventRoster  = "roster"
	EventStatus  = "status"
	EventUpdate  = "update"
)

// HelloData is sent by the client to introduce itself. Token is a previously
// issued identity token; without it the server mints a new participant id.
type HelloData struct {
	User     string `json:"user" validate:"required,max=32"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty" validate:"gte=0"`
}

// MsgData is a chat message or slash command from the client.
type MsgData struct {
	Text string `json:"text" validate:"required"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventWelcomeData confirms the identity bound to the connection.
type EventWelcomeData struct {
	ParticipantID string `json:"participant_id"`
	User          string `json:"user"`
	Token         string `json:"token,omitempty"`
}

// EventMessageData is a chat or system message.
type EventMessageData struct {
	ParticipantID string `json:"participant_id,omitempty"`
	User          string `json:"user"`
	Text          string `json:"text"`
	System        bool   `json:"system,omitempty"`
	MessageType   string `json:"type,omitempty"`
	TS            int64  `json:"ts"`
}

// EventHistoryData replaces the client's message list.
type EventHistoryData struct {
	Messages []EventMessageData `json:"messages"`
}

type EventNoticeData struct {
	Text  string `json:"text"`
	Rolls []int  `json:"rolls,omitempty"`
}

type EventMentionData struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type EventBannedData struct {
	Reason string `json:"reason"`
}

type RosterUser struct {
	ParticipantID string `json:"participant_id"`
	User          string `json:"user"`
}

type EventRosterData struct {
	Users []RosterUser `json:"users"`
}

type EventStatusData struct {
	Status string `json:"status"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
