package core

import "github.com/rs/zerolog"

// Fanout delivers events to single connections or to every registered session.
// A full or closed connection never blocks delivery to the others.
type Fanout struct {
	sessions *Registry
	log      *zerolog.Logger
}

// NewFanout builds a fanout reading from sessions.
func NewFanout(sessions *Registry, logger *zerolog.Logger) *Fanout {
	return &Fanout{sessions: sessions, log: logger}
}

// Send delivers ev to one connection.
func (f *Fanout) Send(c *Client, ev *Event) {
	if c == nil {
		return
	}
	if !c.send(ev) {
		f.log.Warn().Str("client_id", c.ID).Int("kind", int(ev.Kind)).Msg("dropping event for slow client")
	}
}

// SendToParticipant delivers ev to every connection bound to participantID.
func (f *Fanout) SendToParticipant(participantID string, ev *Event) int {
	sessions := f.sessions.FindAllByParticipantID(participantID)
	for _, s := range sessions {
		f.Send(s.Client, ev)
	}
	return len(sessions)
}

// Broadcast delivers ev to every registered session.
func (f *Fanout) Broadcast(ev *Event) {
	for _, s := range f.sessions.All() {
		f.Send(s.Client, ev)
	}
}
