package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/modchat-server/internal/proto"
)

// frame mirrors proto.Outbound with the payload left raw for per-event decoding.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "display name to announce with hello")
	token := flag.String("token", "", "identity token from a previous run")
	text := flag.String("text", "hello from smoke test", "message or /command to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeHello, proto.HelloData{User: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if f.Type == proto.OutboundTypeError {
			return fmt.Errorf("server error: %s: %s", f.Error.Code, f.Error.Msg)
		}

		switch f.Event {
		case proto.EventWelcome:
			var evt proto.EventWelcomeData
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal welcome: %w", err)
			}
			fmt.Printf("Welcome: participant=%s user=%s token=%s\n", evt.ParticipantID, evt.User, evt.Token)
		case proto.EventHistory:
			var evt proto.EventHistoryData
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal history: %w", err)
			}
			fmt.Printf("History: %d messages\n", len(evt.Messages))
			if err := send(proto.InboundTypeMsg, proto.MsgData{Text: *text}); err != nil {
				return err
			}
		case proto.EventMessage:
			var evt proto.EventMessageData
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: user=%s text=%q type=%s ts=%d\n", evt.User, evt.Text, evt.MessageType, evt.TS)
			return nil
		case proto.EventNotice:
			var evt proto.EventNoticeData
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal notice: %w", err)
			}
			fmt.Printf("Notice: %s\n", evt.Text)
			return nil
		case proto.EventBanned:
			var evt proto.EventBannedData
			_ = json.Unmarshal(f.Data, &evt)
			return fmt.Errorf("banned: %s", evt.Reason)
		default:
			fmt.Printf("Event: %s %s\n", f.Event, string(f.Data))
		}
	}
}
