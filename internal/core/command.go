package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify binds the connection to a participant identity.
	CommandIdentify CommandKind = iota
	// CommandSendMessage submits chat text, which may be a slash command.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// CommandIdentify
	ParticipantID string
	Name          string
	Token         string // echoed back in the welcome event

	// CommandSendMessage
	Text string
}
