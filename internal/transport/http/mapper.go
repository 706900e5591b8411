package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// inboundMapper validates client frames and turns them into core commands.
type inboundMapper struct {
	identities    *auth.Service
	log           *zerolog.Logger
	validate      *validator.Validate
	maxTextLength int
	// fallbackToken is the identity token presented at handshake, if any.
	fallbackToken string
}

func (m *inboundMapper) toCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed hello"}, nil
		}
		hello.User = strings.TrimSpace(hello.User)
		if err := m.validate.Struct(hello); err != nil {
			return nil, validationError(err), nil
		}
		if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{
				Code: core.ErrCodeUnsupportedVersion,
				Msg:  fmt.Sprintf("unsupported protocol version %d, server speaks %d", hello.Protocol, proto.ProtocolVersion),
			}, nil
		}

		token := hello.Token
		if token == "" {
			token = m.fallbackToken
		}
		identity, err := m.identities.Resolve(token)
		if err != nil {
			return nil, nil, err
		}
		if identity.Minted {
			m.log.Info().Str("participant_id", identity.ParticipantID).Str("user", hello.User).Msg("minted participant identity")
		}
		return &core.Command{
			Kind:          core.CommandIdentify,
			ParticipantID: identity.ParticipantID,
			Name:          hello.User,
			Token:         identity.Token,
		}, nil, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed msg"}, nil
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, nil, nil
		}
		if err := m.validate.Struct(msg); err != nil {
			return nil, validationError(err), nil
		}
		if m.maxTextLength > 0 && utf8.RuneCountInString(msg.Text) > m.maxTextLength {
			return nil, &proto.Error{
				Code: core.ErrCodeValidation,
				Msg:  fmt.Sprintf("text exceeds %d characters", m.maxTextLength),
			}, nil
		}
		return &core.Command{Kind: core.CommandSendMessage, Text: msg.Text}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}, nil
	}
}

func validationError(err error) *proto.Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &proto.Error{
			Code: core.ErrCodeValidation,
			Msg:  fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()),
		}
	}
	return &proto.Error{Code: core.ErrCodeValidation, Msg: err.Error()}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventWelcome:
		return eventFrame(proto.EventWelcome, proto.EventWelcomeData{
			ParticipantID: event.ParticipantID,
			User:          event.User,
			Token:         event.Token,
		})
	case core.EventHistory:
		messages := make([]proto.EventMessageData, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageData(msg))
		}
		return eventFrame(proto.EventHistory, proto.EventHistoryData{Messages: messages})
	case core.EventMessage:
		return eventFrame(proto.EventMessage, messageData(event.Message))
	case core.EventNotice:
		return eventFrame(proto.EventNotice, proto.EventNoticeData{Text: event.Text, Rolls: event.Rolls})
	case core.EventMention:
		data := proto.EventMentionData{}
		if event.Mention != nil {
			data.From = event.Mention.From
			data.Message = event.Mention.Message
		}
		return eventFrame(proto.EventMention, data)
	case core.EventBanned:
		return eventFrame(proto.EventBanned, proto.EventBannedData{Reason: event.Text})
	case core.EventRoster:
		users := make([]proto.RosterUser, 0, len(event.Roster))
		for _, r := range event.Roster {
			users = append(users, proto.RosterUser{ParticipantID: r.ParticipantID, User: r.User})
		}
		return eventFrame(proto.EventRoster, proto.EventRosterData{Users: users})
	case core.EventStatus:
		return eventFrame(proto.EventStatus, proto.EventStatusData{Status: event.Status})
	case core.EventUpdate:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventUpdate}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventFrame(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func messageData(msg store.Message) proto.EventMessageData {
	return proto.EventMessageData{
		ParticipantID: msg.ParticipantID,
		User:          msg.DisplayName,
		Text:          msg.Text,
		System:        msg.System,
		MessageType:   string(msg.Type),
		TS:            msg.Timestamp,
	}
}
