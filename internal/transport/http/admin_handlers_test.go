package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store"
)

func postJSON(t *testing.T, ts *testServer, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON[T any](t *testing.T, ts *testServer, path string) T {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAdminBanAndUnban(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx := testContext(t)

	conn := dial(t, ctx, ts, nil)
	welcome := hello(t, ctx, conn, "alice", "")
	send(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "hello"})
	readUntil(t, ctx, conn, proto.OutboundTypeEvent, proto.EventMessage)

	resp := postJSON(t, ts, "/admin/ban", BanRequest{ParticipantID: welcome.ParticipantID, Reason: "spam", Password: "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, getJSON[[]store.Ban](t, ts, "/api/bans"))

	resp = postJSON(t, ts, "/admin/ban", BanRequest{ParticipantID: welcome.ParticipantID, Reason: "spam", Password: testAdminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var banned BanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&banned))
	assert.Equal(t, "alice", banned.Ban.DisplayName)
	assert.Equal(t, "spam", banned.Ban.Reason)

	readUntil(t, ctx, conn, proto.OutboundTypeEvent, proto.EventBanned)

	bans := getJSON[[]store.Ban](t, ts, "/api/bans")
	require.Len(t, bans, 1)
	assert.Equal(t, welcome.ParticipantID, bans[0].ParticipantID)

	resp = postJSON(t, ts, "/admin/unban", UnbanRequest{ParticipantID: welcome.ParticipantID, Password: testAdminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, getJSON[[]store.Ban](t, ts, "/api/bans"))

	resp = postJSON(t, ts, "/admin/unban", UnbanRequest{ParticipantID: welcome.ParticipantID, Password: testAdminPassword})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	history := getJSON[[]store.Message](t, ts, "/api/history")
	require.Len(t, history, 3)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, store.MessageTypeBan, history[1].Type)
	assert.Equal(t, store.MessageTypeUnban, history[2].Type)
}

func TestAdminBanUnknownParticipant(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := postJSON(t, ts, "/admin/ban", BanRequest{ParticipantID: "ghost", Password: testAdminPassword})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRejectsBadBody(t *testing.T) {
	ts := startTestServer(t, nil)

	resp := postJSON(t, ts, "/admin/ban", map[string]string{"reason": "no target"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.AdminPassword = "" })

	resp := postJSON(t, ts, "/admin/ban", BanRequest{ParticipantID: "x", Password: testAdminPassword})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx := testContext(t)

	conn := dial(t, ctx, ts, nil)
	hello(t, ctx, conn, "alice", "")
	send(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "/flip"})
	readUntil(t, ctx, conn, proto.OutboundTypeEvent, proto.EventNotice)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `modchat_commands_total{command="flip"} 1`), string(body))
	assert.Contains(t, string(body), "modchat_sessions 1")
}
