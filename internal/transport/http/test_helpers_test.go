package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/history"
	"github.com/vovakirdan/modchat-server/internal/metrics"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store/jsonfile"
)

const testAdminPassword = "letmein"

type testServer struct {
	*httptest.Server
	hub *core.Hub
	mod *moderation.Store
}

// startTestServer wires the full stack over a temporary JSON store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.AdminPassword = testAdminPassword
	cfg.IdentitySecret = "test-identity-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, err := jsonfile.New(cfg.DataDir)
	if err != nil {
		t.Fatalf("jsonfile.New: %v", err)
	}
	mod, err := moderation.New(ctx, st, st)
	if err != nil {
		t.Fatalf("moderation.New: %v", err)
	}
	hist, err := history.New(ctx, st, cfg.HistoryLimit)
	if err != nil {
		t.Fatalf("history.New: %v", err)
	}

	m := metrics.New()
	engine := core.NewEngine(mod, hist, core.Options{AdminIDs: cfg.AdminIDs, Metrics: m, Logger: &logger})
	hub := core.NewHub(engine, &logger)
	go hub.Run(ctx)

	identities := auth.NewService(&auth.JWTConfig{Secret: []byte(cfg.IdentitySecret), TTL: cfg.IdentityTTL})
	admin, err := auth.NewAdminVerifier(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		t.Fatalf("NewAdminVerifier: %v", err)
	}

	server := NewServer(hub, identities, admin, m, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub, mod: mod}
}

func (ts *testServer) wsURL() string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func dial(t *testing.T, ctx context.Context, ts *testServer, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, ts.wsURL(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one matches typ and, for events, name.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ, name string) frame {
	t.Helper()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %s/%s: %v", typ, name, err)
		}
		if f.Type == typ && (name == "" || f.Event == name) {
			return f
		}
	}
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
	return v
}

// hello identifies conn and returns the welcome payload, leaving the history frame consumed.
func hello(t *testing.T, ctx context.Context, conn *websocket.Conn, user, token string) proto.EventWelcomeData {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: user, Token: token})
	welcome := decode[proto.EventWelcomeData](t, readUntil(t, ctx, conn, proto.OutboundTypeEvent, proto.EventWelcome))
	readUntil(t, ctx, conn, proto.OutboundTypeEvent, proto.EventHistory)
	return welcome
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
