package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/history"
	"github.com/vovakirdan/modchat-server/internal/metrics"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
)

const (
	// AutoModName authors system messages produced by moderation.
	AutoModName = "AutoMod"
	// ServerName authors messages sent with /server say.
	ServerName = "Server"

	internalErrorText = "Something went wrong while processing your request."
	persistWarnText   = "Warning: the change is in effect but could not be saved to disk."
)

// Options configures an Engine.
type Options struct {
	// AdminIDs lists participant ids allowed to run admin commands.
	AdminIDs []string
	// Now defaults to time.Now.
	Now func() time.Time
	// Rand drives /roll and /flip. Defaults to a time-seeded PCG.
	Rand *rand.Rand
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Engine is the session and moderation state machine. Every method must be
// called from a single goroutine; Hub provides that serialization.
type Engine struct {
	mod      *moderation.Store
	history  *history.Buffer
	sessions *Registry
	fanout   *Fanout
	admins   map[string]struct{}
	now      func() time.Time
	rand     *rand.Rand
	metrics  *metrics.Metrics
	log      *zerolog.Logger
}

// NewEngine builds an engine over already loaded moderation and history state.
func NewEngine(mod *moderation.Store, hist *history.Buffer, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rnd := opts.Rand
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}

	admins := make(map[string]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}

	sessions := NewRegistry()
	return &Engine{
		mod:      mod,
		history:  hist,
		sessions: sessions,
		fanout:   NewFanout(sessions, logger),
		admins:   admins,
		now:      now,
		rand:     rnd,
		metrics:  opts.Metrics,
		log:      logger,
	}
}

// Sessions exposes the registry for read-only inspection.
func (e *Engine) Sessions() *Registry {
	return e.sessions
}

// Bans returns the current ban list.
func (e *Engine) Bans() []store.Ban {
	return e.mod.Bans()
}

// History returns the buffered messages, oldest first.
func (e *Engine) History() []store.Message {
	return e.history.Recent(0)
}

// IsAdmin reports whether participantID is on the admin allowlist.
func (e *Engine) IsAdmin(participantID string) bool {
	_, ok := e.admins[participantID]
	return ok
}

// Identify binds c to a participant and replays history. Banned participants
// are told so and disconnected.
func (e *Engine) Identify(_ context.Context, c *Client, participantID, displayName, token string) {
	select {
	case <-c.Done():
		// Identify raced with a disconnect; registering now would leak the session.
		return
	default:
	}

	displayName = strings.TrimSpace(displayName)
	if participantID == "" || displayName == "" {
		e.fanout.Send(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "participant id and name are required")})
		return
	}

	if ban, banned := e.mod.GetBan(participantID); banned {
		e.log.Info().Str("participant_id", participantID).Msg("rejected banned participant")
		e.fanout.Send(c, &Event{Kind: EventBanned, Text: bannedText(ban.Reason)})
		e.disconnect(c, "banned")
		return
	}

	e.sessions.Register(c, participantID, displayName, e.now())
	e.metrics.SetSessions(e.sessions.Len())
	e.log.Info().Str("client_id", c.ID).Str("participant_id", participantID).Str("name", displayName).Msg("participant identified")

	e.fanout.Send(c, &Event{Kind: EventWelcome, ParticipantID: participantID, User: displayName, Token: token})
	e.fanout.Send(c, &Event{Kind: EventHistory, Messages: e.history.Recent(history.DefaultLimit)})
}

// Disconnect removes the binding of c, if any.
func (e *Engine) Disconnect(c *Client) {
	sess, ok := e.sessions.Get(c)
	if !ok || !e.sessions.Unregister(c) {
		return
	}
	e.metrics.SetSessions(e.sessions.Len())
	e.log.Debug().
		Str("client_id", c.ID).
		Str("participant_id", sess.ParticipantID).
		Dur("connected_for", e.now().Sub(sess.ConnectedAt)).
		Msg("session removed")
}

// HandleMessage runs one inbound text through the pipeline:
// identity, ban, mute, command dispatch, AutoMod, then append and broadcast.
func (e *Engine) HandleMessage(ctx context.Context, c *Client, text string) {
	sess, ok := e.sessions.Get(c)
	if !ok {
		e.metrics.Rejected("unidentified")
		return
	}

	if ban, banned := e.mod.GetBan(sess.ParticipantID); banned {
		e.metrics.Rejected("banned")
		e.fanout.Send(c, &Event{Kind: EventBanned, Text: bannedText(ban.Reason)})
		return
	}

	if remaining, muted := e.mod.IsMuted(sess.ParticipantID); muted {
		e.metrics.Rejected("muted")
		secs := int(math.Ceil(remaining.Seconds()))
		e.notice(c, fmt.Sprintf("You are muted for %d more %s.", secs, plural(secs, "second", "seconds")))
		return
	}

	if strings.HasPrefix(text, CommandPrefix) {
		e.runCommand(ctx, sess, text)
		return
	}

	if word, hit := e.mod.FindBannedWord(text); hit {
		e.autoModBan(ctx, sess, word)
		return
	}

	msg := store.Message{
		ParticipantID: sess.ParticipantID,
		DisplayName:   sess.DisplayName,
		Text:          text,
		Timestamp:     e.now().UnixMilli(),
	}
	e.publish(ctx, msg, nil)
	e.metrics.Accepted()
	e.notifyMentions(sess, text)
}

// AdminBan bans participantID on behalf of an HTTP admin and announces it.
// The returned error is ErrTargetNotFound or a *store.PersistenceError;
// in the latter case the ban is in effect.
func (e *Engine) AdminBan(ctx context.Context, participantID, reason string) (store.Ban, error) {
	return e.banParticipant(ctx, participantID, reason)
}

// AdminUnban lifts a ban on behalf of an HTTP admin and announces it.
func (e *Engine) AdminUnban(ctx context.Context, participantID string) (store.Ban, error) {
	return e.unbanParticipant(ctx, participantID)
}

// Recover reports a panic raised while handling an event for c.
func (e *Engine) Recover(c *Client, r any) {
	e.log.Error().Interface("panic", r).Str("client_id", clientID(c)).Msg("recovered from panic in event handler")
	if c != nil {
		e.notice(c, internalErrorText)
	}
}

func (e *Engine) autoModBan(ctx context.Context, sess Session, word string) {
	reason := `Used banned word "` + word + `"`
	_, err := e.mod.Ban(ctx, sess.ParticipantID, sess.DisplayName, reason)
	e.reportPersist(err, nil)
	e.metrics.AutoModBan()
	e.log.Info().Str("participant_id", sess.ParticipantID).Str("word", word).Msg("automod ban")

	e.fanout.Send(sess.Client, &Event{Kind: EventBanned, Text: "You were banned for using a banned word."})
	e.disconnect(sess.Client, "banned")

	e.publish(ctx, e.systemMessage(AutoModName, sess.DisplayName+" was banned for using a banned word.", store.MessageTypeBan), nil)
}

func (e *Engine) banParticipant(ctx context.Context, participantID, reason string) (store.Ban, error) {
	name, known := e.displayNameOf(participantID)
	if !known {
		return store.Ban{}, ErrTargetNotFound
	}
	if reason == "" {
		reason = "Banned by an admin"
	}

	rec, err := e.mod.Ban(ctx, participantID, name, reason)
	e.log.Info().Str("participant_id", participantID).Str("reason", reason).Msg("participant banned")

	e.fanout.SendToParticipant(participantID, &Event{Kind: EventBanned, Text: bannedText(reason)})
	e.publish(ctx, e.systemMessage(AutoModName, fmt.Sprintf("%s was banned by an admin. Reason: %s", name, reason), store.MessageTypeBan), nil)
	return rec, err
}

func (e *Engine) unbanParticipant(ctx context.Context, participantID string) (store.Ban, error) {
	rec, ok, err := e.mod.Unban(ctx, participantID)
	if !ok {
		return store.Ban{}, ErrNotBanned
	}
	e.log.Info().Str("participant_id", participantID).Msg("participant unbanned")

	name := rec.DisplayName
	if name == "" {
		name = "A user"
	}
	e.publish(ctx, e.systemMessage(AutoModName, name+" has been unbanned by an admin.", store.MessageTypeUnban), nil)
	return rec, err
}

// publish appends msg to history and broadcasts it.
func (e *Engine) publish(ctx context.Context, msg store.Message, caller *Session) {
	e.reportPersist(e.history.Append(ctx, msg), caller)
	e.fanout.Broadcast(&Event{Kind: EventMessage, Message: msg})
}

func (e *Engine) systemMessage(author, text string, typ store.MessageType) store.Message {
	return store.Message{
		DisplayName: author,
		Text:        text,
		System:      true,
		Type:        typ,
		Timestamp:   e.now().UnixMilli(),
	}
}

func (e *Engine) notifyMentions(sender Session, text string) {
	for _, s := range e.sessions.All() {
		if s.ParticipantID == sender.ParticipantID {
			continue
		}
		if mentions(text, s.DisplayName) {
			e.fanout.Send(s.Client, &Event{Kind: EventMention, Mention: &Mention{From: sender.DisplayName, Message: text}})
		}
	}
}

// disconnect unbinds c right away so it gets no further broadcasts, then asks
// the transport to close it.
func (e *Engine) disconnect(c *Client, reason string) {
	e.Disconnect(c)
	c.Close(reason)
}

// displayNameOf resolves a participant among live sessions, history and bans.
func (e *Engine) displayNameOf(participantID string) (string, bool) {
	if s, ok := e.sessions.FindByParticipantID(participantID); ok {
		return s.DisplayName, true
	}
	if name, ok := e.history.LastNameOf(participantID); ok {
		return name, true
	}
	if ban, ok := e.mod.GetBan(participantID); ok {
		return ban.DisplayName, true
	}
	return "", false
}

func (e *Engine) notice(c *Client, text string) {
	e.fanout.Send(c, &Event{Kind: EventNotice, Text: text})
}

// reportPersist surfaces a failed durable write to the operator log and, when
// an admin caused it, to that admin.
func (e *Engine) reportPersist(err error, caller *Session) {
	if err == nil {
		return
	}
	collection := "unknown"
	var pErr *store.PersistenceError
	if errors.As(err, &pErr) {
		collection = pErr.Collection
	}
	e.metrics.PersistFailure(collection)
	e.log.Error().Err(err).Str("collection", collection).Msg("persistence failed; in-memory state kept")
	if caller != nil {
		e.notice(caller.Client, persistWarnText)
	}
}

func bannedText(reason string) string {
	if reason == "" {
		return "You are banned."
	}
	return "You are banned. Reason: " + reason
}

// mentions reports whether text contains @name, case-insensitively, not
// followed by another name character.
func mentions(text, name string) bool {
	if name == "" {
		return false
	}
	lowerText := strings.ToLower(text)
	needle := "@" + strings.ToLower(name)

	for from := 0; from < len(lowerText); {
		i := strings.Index(lowerText[from:], needle)
		if i < 0 {
			return false
		}
		end := from + i + len(needle)
		if end == len(lowerText) {
			return true
		}
		next, _ := utf8.DecodeRuneInString(lowerText[end:])
		if !unicode.IsLetter(next) && !unicode.IsDigit(next) && next != '_' {
			return true
		}
		from = from + i + 1
	}
	return false
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func clientID(c *Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
