package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nrep-ug/mysql-monitor/pkg/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Type string `json:"type"`
	Data struct {
		Status  string           `json:"status"`
		History []map[string]any `json:"history"`
	} `json:"data"`
}

func readFrame(conn *websocket.Conn, wait time.Duration) (wsFrame, error) {
	var f wsFrame
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return f, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	return f, json.Unmarshal(raw, &f)
}

func TestWebSocketRejectsBadTokensBeforeUpgrade(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	for name, token := range map[string]string{
		"missing":      "",
		"malformed":    e.jwt.GenerateMalformedJWT(),
		"expired":      e.jwt.GenerateExpiredJWT("ada@example.com", "ada"),
		"wrong secret": e.jwt.GenerateJWTWithWrongSecret("ada@example.com", "ada"),
	} {
		conn, resp, err := testutil.DialWebSocket(testutil.WebSocketURL(srv, "/ws", token))
		if conn != nil {
			conn.Close()
		}
		require.Error(t, err, name)
		require.NotNil(t, resp, name)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestWebSocketRejectsRevokedToken(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	token := e.jwt.GenerateValidJWT("ada@example.com", "ada")
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/logout", token, nil).Code)

	_, resp, err := testutil.DialWebSocket(testutil.WebSocketURL(srv, "/ws", token))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketInitialSnapshotThenTransitions(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	conn, _, err := testutil.DialWebSocket(testutil.WebSocketURL(srv, "/ws", e.jwt.GenerateValidJWT("ada@example.com", "ada")))
	require.NoError(t, err)
	defer conn.Close()

	initial, err := readFrame(conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "status", initial.Type)
	assert.Equal(t, "UP", initial.Data.Status)
	assert.Empty(t, initial.Data.History)

	// No-op tick: still UP.
	e.monitor.Tick(context.Background())

	e.probe.Set(false)
	e.monitor.Tick(context.Background())
	e.monitor.Tick(context.Background())

	down, err := readFrame(conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "DOWN", down.Data.Status)
	assert.Len(t, down.Data.History, 1)

	_, err = readFrame(conn, 200*time.Millisecond)
	assert.Error(t, err, "no frame expected for no-op ticks")
}
