package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketURL turns an httptest server URL into a ws:// URL for path, with
// token set as the "token" query parameter when non-empty.
func WebSocketURL(srv *httptest.Server, path, token string) string {
	u := strings.Replace(srv.URL, "http://", "ws://", 1) + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// DialWebSocket connects to a test server with a short handshake timeout.
func DialWebSocket(rawURL string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(rawURL, nil)
}
