package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
)

// errClosedByServer ends a connection the engine asked to drop.
type errClosedByServer struct {
	reason string
}

func (e errClosedByServer) Error() string {
	return "closed by server: " + e.reason
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub        *core.Hub
	identities *auth.Service
	validate   *validator.Validate
	cfg        *config.Config
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, identities *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:        hub,
		identities: identities,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg:        cfg,
		log:        logger,
	}
}

// ServeHTTP upgrades /ws. It must not run behind gin, whose writer cannot be hijacked.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	handshakeToken := h.handshakeToken(r)

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString())
	h.hub.RegisterClient(client)
	defer func() {
		client.Close("disconnected")
		h.hub.UnregisterClient(client)
	}()

	mapper := &inboundMapper{
		identities:    h.identities,
		log:           h.log,
		validate:      h.validate,
		maxTextLength: h.cfg.MaxTextLength,
		fallbackToken: handshakeToken,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, mapper)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	var closed errClosedByServer
	if errors.As(err, &closed) {
		// Close before cancelling so the reason reaches the peer.
		conn.Close(websocket.StatusPolicyViolation, closed.reason)
		cancel()
		<-errCh
		return
	}
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshakeToken returns a valid identity token from the Authorization header
// or the identity cookie. Invalid tokens are ignored so hello can mint one.
func (h *WSHandler) handshakeToken(r *stdhttp.Request) string {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if cookie, err := r.Cookie(IdentityCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return ""
	}
	if _, err := h.identities.ValidateToken(token); err != nil {
		h.log.Debug().Err(err).Msg("ignoring invalid identity token")
		return ""
	}
	return token
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, mapper *inboundMapper) error {
	limiter := newRateLimiter(h.cfg.MessagesPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		if inbound.Type == proto.InboundTypeMsg && !limiter.allow() {
			if err := writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "slow down"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := mapper.toCommand(inbound)
		if err != nil {
			h.log.Error().Err(err).Str("client_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}
		if cmd == nil {
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			// The write loop is closing the connection.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.writeEvent(ctx, conn, client, event); err != nil {
				return err
			}
		case <-client.Done():
			// Flush what the engine queued before asking to close, e.g. the ban notice.
			for {
				select {
				case event := <-client.Events:
					if err := h.writeEvent(ctx, conn, client, event); err != nil {
						return err
					}
				default:
					return errClosedByServer{reason: client.CloseReason()}
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeEvent(ctx context.Context, conn *websocket.Conn, client *core.Client, event *core.Event) error {
	if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
		h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
		return err
	}
	return nil
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
}
