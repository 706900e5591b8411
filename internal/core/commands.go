package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// CommandPrefix starts every slash command.
const CommandPrefix = "/"

const (
	maxDice  = 100
	maxFaces = 1000
)

type commandFunc func(e *Engine, ctx context.Context, caller Session, args []string)

type commandSpec struct {
	run   commandFunc
	admin bool
	usage string
}

var commands map[string]commandSpec

func init() {
	commands = map[string]commandSpec{
		"ban":              {run: cmdBan, admin: true, usage: "/ban <id> [reason]"},
		"unban":            {run: cmdUnban, admin: true, usage: "/unban <id>"},
		"mute":             {run: cmdMute, admin: true, usage: "/mute <id> [duration, e.g. 30s, 10m, 1h]"},
		"kick":             {run: cmdKick, admin: true, usage: "/kick <id>"},
		"clear":            {run: cmdClear, admin: true, usage: "/clear <id>"},
		"purge":            {run: cmdPurge, admin: true, usage: "/purge"},
		"addbannedword":    {run: cmdAddWord, admin: true, usage: "/addbannedword <word>"},
		"removebannedword": {run: cmdRemoveWord, admin: true, usage: "/removebannedword <word>"},
		"server":           {run: cmdServer, admin: true, usage: "/server say <text> | update | listusers | updatestatus <status>"},
		"online":           {run: cmdOnline, usage: "/online"},
		"stats":            {run: cmdStats, usage: "/stats"},
		"roll":             {run: cmdRoll, usage: "/roll <X>d<Y>"},
		"flip":             {run: cmdFlip, usage: "/flip"},
		"hug":              {run: cmdHug, usage: "/hug <id>"},
		"help":             {run: cmdHelp, usage: "/help"},
	}
}

// parseCommand splits "/name arg arg" into a lowercased name and its tokens.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(text, CommandPrefix))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// rest joins the free-text tail of args with single spaces.
func rest(args []string, from int) string {
	if from >= len(args) {
		return ""
	}
	return strings.Join(args[from:], " ")
}

func (e *Engine) runCommand(ctx context.Context, caller Session, text string) {
	name, args := parseCommand(text)
	entry, ok := commands[name]
	if !ok {
		e.metrics.Command("unknown")
		e.notice(caller.Client, "Unknown command. Type /help for a list of commands.")
		return
	}
	e.metrics.Command(name)

	if entry.admin && !e.IsAdmin(caller.ParticipantID) {
		e.log.Info().Str("participant_id", caller.ParticipantID).Str("command", name).Msg("admin command refused")
		e.notice(caller.Client, "You are not an admin.")
		return
	}

	e.log.Info().Str("participant_id", caller.ParticipantID).Str("command", name).Msg("running command")
	entry.run(e, ctx, caller, args)
}

func (e *Engine) usage(c *Client, name string) {
	e.notice(c, "Usage: "+commands[name].usage)
}

func cmdBan(e *Engine, ctx context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "ban")
		return
	}
	target := args[0]
	_, err := e.banParticipant(ctx, target, rest(args, 1))
	if errors.Is(err, ErrTargetNotFound) {
		e.notice(caller.Client, fmt.Sprintf("No participant with id %s was found.", target))
		return
	}
	e.reportPersist(err, &caller)
}

func cmdUnban(e *Engine, ctx context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "unban")
		return
	}
	target := args[0]
	_, err := e.unbanParticipant(ctx, target)
	if errors.Is(err, ErrNotBanned) {
		e.notice(caller.Client, fmt.Sprintf("No ban found for %s.", target))
		return
	}
	e.reportPersist(err, &caller)
}

func cmdMute(e *Engine, _ context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "mute")
		return
	}
	target, ok := e.sessions.FindByParticipantID(args[0])
	if !ok {
		e.notice(caller.Client, fmt.Sprintf("%s is not connected.", args[0]))
		return
	}

	d := moderation.DefaultMuteDuration
	if len(args) > 1 {
		parsed, err := moderation.ParseDuration(args[1])
		if err != nil {
			e.notice(caller.Client, "Invalid duration "+strconv.Quote(args[1])+". Usage: "+commands["mute"].usage)
			return
		}
		d = parsed
	}

	e.mod.Mute(target.ParticipantID, d)
	e.notice(caller.Client, fmt.Sprintf("%s has been muted for %s.", target.DisplayName, d))
	e.fanout.SendToParticipant(target.ParticipantID, &Event{Kind: EventNotice, Text: fmt.Sprintf("You have been muted for %s.", d)})
}

func cmdKick(e *Engine, _ context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "kick")
		return
	}
	targets := e.sessions.FindAllByParticipantID(args[0])
	if len(targets) == 0 {
		e.notice(caller.Client, fmt.Sprintf("%s is not connected.", args[0]))
		return
	}
	for _, s := range targets {
		e.notice(s.Client, "You have been kicked by an admin.")
		e.disconnect(s.Client, "kicked")
	}
	e.notice(caller.Client, fmt.Sprintf("Kicked %s (%d %s).", targets[0].DisplayName, len(targets), plural(len(targets), "connection", "connections")))
}

func cmdClear(e *Engine, ctx context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "clear")
		return
	}
	n, err := e.history.RemoveBy(ctx, args[0])
	e.reportPersist(err, &caller)
	e.notice(caller.Client, fmt.Sprintf("Removed %d %s from %s.", n, plural(n, "message", "messages"), args[0]))
	if n > 0 {
		e.fanout.Broadcast(&Event{Kind: EventHistory, Messages: e.history.Recent(0)})
	}
}

func cmdPurge(e *Engine, ctx context.Context, caller Session, _ []string) {
	e.reportPersist(e.history.Purge(ctx), &caller)
	e.notice(caller.Client, "History purged.")
	e.fanout.Broadcast(&Event{Kind: EventHistory, Messages: []store.Message{}})
}

func cmdAddWord(e *Engine, ctx context.Context, caller Session, args []string) {
	word := rest(args, 0)
	added, err := e.mod.AddWord(ctx, word)
	switch {
	case errors.Is(err, moderation.ErrEmptyWord):
		e.usage(caller.Client, "addbannedword")
		return
	case !added:
		e.notice(caller.Client, strconv.Quote(word)+" is already banned.")
		return
	}
	e.reportPersist(err, &caller)
	e.notice(caller.Client, "Added "+strconv.Quote(word)+" to the banned words.")
}

func cmdRemoveWord(e *Engine, ctx context.Context, caller Session, args []string) {
	word := rest(args, 0)
	if word == "" {
		e.usage(caller.Client, "removebannedword")
		return
	}
	removed, err := e.mod.RemoveWord(ctx, word)
	if !removed {
		e.notice(caller.Client, strconv.Quote(word)+" is not a banned word.")
		return
	}
	e.reportPersist(err, &caller)
	e.notice(caller.Client, "Removed "+strconv.Quote(word)+" from the banned words.")
}

func cmdServer(e *Engine, ctx context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "server")
		return
	}
	switch strings.ToLower(args[0]) {
	case "say":
		text := rest(args, 1)
		if text == "" {
			e.usage(caller.Client, "server")
			return
		}
		e.publish(ctx, e.systemMessage(ServerName, text, store.MessageTypeSay), &caller)
	case "update":
		e.fanout.Broadcast(&Event{Kind: EventUpdate})
	case "listusers":
		e.fanout.Broadcast(&Event{Kind: EventRoster, Roster: e.roster()})
	case "updatestatus":
		status := rest(args, 1)
		if status == "" {
			e.usage(caller.Client, "server")
			return
		}
		e.fanout.Broadcast(&Event{Kind: EventStatus, Status: status})
	default:
		e.usage(caller.Client, "server")
	}
}

func cmdOnline(e *Engine, _ context.Context, caller Session, _ []string) {
	n := e.sessions.Len()
	e.notice(caller.Client, fmt.Sprintf("%d %s online.", n, plural(n, "user", "users")))
}

func cmdStats(e *Engine, _ context.Context, caller Session, _ []string) {
	n := e.history.CountBy(caller.ParticipantID)
	e.notice(caller.Client, fmt.Sprintf("You have sent %d %s in the recent history.", n, plural(n, "message", "messages")))
}

func cmdRoll(e *Engine, _ context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "roll")
		return
	}
	dice, faces, err := parseDice(args[0])
	if err != nil {
		e.notice(caller.Client, err.Error()+". Usage: "+commands["roll"].usage)
		return
	}

	rolls := make([]int, dice)
	total := 0
	parts := make([]string, dice)
	for i := range rolls {
		rolls[i] = e.rand.IntN(faces) + 1
		total += rolls[i]
		parts[i] = strconv.Itoa(rolls[i])
	}
	e.fanout.Send(caller.Client, &Event{
		Kind:  EventNotice,
		Text:  fmt.Sprintf("You rolled %s: %s (total %d)", args[0], strings.Join(parts, ", "), total),
		Rolls: rolls,
	})
}

func parseDice(expr string) (dice, faces int, err error) {
	x, y, ok := strings.Cut(strings.ToLower(expr), "d")
	if !ok || !isDigits(x) || !isDigits(y) {
		return 0, 0, errors.New("invalid dice")
	}
	dice, err = strconv.Atoi(x)
	if err != nil || dice < 1 || dice > maxDice {
		return 0, 0, fmt.Errorf("dice count must be between 1 and %d", maxDice)
	}
	faces, err = strconv.Atoi(y)
	if err != nil || faces < 1 || faces > maxFaces {
		return 0, 0, fmt.Errorf("faces must be between 1 and %d", maxFaces)
	}
	return dice, faces, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cmdFlip(e *Engine, _ context.Context, caller Session, _ []string) {
	side := "Heads"
	if e.rand.IntN(2) == 1 {
		side = "Tails"
	}
	e.notice(caller.Client, "The coin landed on "+side+".")
}

func cmdHug(e *Engine, _ context.Context, caller Session, args []string) {
	if len(args) < 1 {
		e.usage(caller.Client, "hug")
		return
	}
	target, ok := e.sessions.FindByParticipantID(args[0])
	if !ok {
		e.notice(caller.Client, fmt.Sprintf("%s is not connected.", args[0]))
		return
	}
	e.fanout.Broadcast(&Event{Kind: EventNotice, Text: fmt.Sprintf("%s hugs %s!", caller.DisplayName, target.DisplayName)})
}

func cmdHelp(e *Engine, _ context.Context, caller Session, _ []string) {
	admin := e.IsAdmin(caller.ParticipantID)
	names := make([]string, 0, len(commands))
	for name, entry := range commands {
		if entry.admin && !admin {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range names {
		b.WriteString("\n  ")
		b.WriteString(commands[name].usage)
	}
	e.notice(caller.Client, b.String())
}

func (e *Engine) roster() []RosterEntry {
	all := e.sessions.All()
	out := make([]RosterEntry, 0, len(all))
	for _, s := range all {
		out = append(out, RosterEntry{ParticipantID: s.ParticipantID, User: s.DisplayName})
	}
	return out
}
