package core

import "time"

// Session binds a live connection to a participant identity.
type Session struct {
	Client        *Client
	ParticipantID string
	DisplayName   string
	ConnectedAt   time.Time
}

// Registry tracks identified connections in registration order.
// It is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	sessions map[*Client]*Session
	order    []*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Client]*Session)}
}

// Register binds c to an identity. Registering the same connection again overwrites its binding.
func (r *Registry) Register(c *Client, participantID, displayName string, now time.Time) Session {
	if s, ok := r.sessions[c]; ok {
		s.ParticipantID = participantID
		s.DisplayName = displayName
		return *s
	}

	s := &Session{
		Client:        c,
		ParticipantID: participantID,
		DisplayName:   displayName,
		ConnectedAt:   now,
	}
	r.sessions[c] = s
	r.order = append(r.order, c)
	return *s
}

// Unregister removes the binding of c. Returns true if it was bound.
func (r *Registry) Unregister(c *Client) bool {
	if _, ok := r.sessions[c]; !ok {
		return false
	}
	delete(r.sessions, c)
	for i, oc := range r.order {
		if oc == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the session bound to c.
func (r *Registry) Get(c *Client) (Session, bool) {
	s, ok := r.sessions[c]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// All returns every session in registration order.
func (r *Registry) All() []Session {
	out := make([]Session, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, *r.sessions[c])
	}
	return out
}

// FindByParticipantID returns the first session bound to participantID.
func (r *Registry) FindByParticipantID(participantID string) (Session, bool) {
	for _, c := range r.order {
		if s := r.sessions[c]; s.ParticipantID == participantID {
			return *s, true
		}
	}
	return Session{}, false
}

// FindAllByParticipantID returns every session bound to participantID.
func (r *Registry) FindAllByParticipantID(participantID string) []Session {
	var out []Session
	for _, c := range r.order {
		if s := r.sessions[c]; s.ParticipantID == participantID {
			out = append(out, *s)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.order)
}
