package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anonchat/internal/config"
	"anonchat/internal/geo"
	"anonchat/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func testServer(t *testing.T) (*httptest.Server, *store.SessionStore, *store.MessageLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Env:           "dev",
		GeoBaseURL:    "http://unreachable.invalid",
		GeoTimeout:    100 * time.Millisecond,
		MessageMaxLen: 500,
	}
	sessions := store.NewSessionStore(30, time.Minute)
	history := store.NewMessageLog(100)
	limiter := store.NewRateLimiter(10*time.Second, 5)
	resolver := geo.NewResolver(cfg.GeoBaseURL, cfg.GeoTimeout)
	hub := NewHub(sessions)
	go hub.Run()

	r := gin.New()
	r.GET("/ws", Serve(hub, sessions, history, limiter, resolver, cfg))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sessions, history
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("malformed event %s: %v", data, err)
	}
	return env
}

func TestServe_ConnectHandshakeOrder(t *testing.T) {
	srv, _, _ := testServer(t)
	conn := dial(t, srv, "")

	// 客户端必须先拿到会话 ID，再拿到历史，再拿到名单。
	env := readEvent(t, conn)
	if env.Type != evtSession {
		t.Fatalf("first event = %q, want %q", env.Type, evtSession)
	}
	var sp sessionPayload
	if err := json.Unmarshal(env.Data, &sp); err != nil || sp.SessionID == "" {
		t.Fatalf("session payload = %s", env.Data)
	}

	env = readEvent(t, conn)
	if env.Type != evtHistoryInit {
		t.Fatalf("second event = %q, want %q", env.Type, evtHistoryInit)
	}

	env = readEvent(t, conn)
	if env.Type != evtUsers {
		t.Fatalf("third event = %q, want %q", env.Type, evtUsers)
	}
}

func TestServe_ReconnectKeepsIdentity(t *testing.T) {
	srv, sessions, _ := testServer(t)

	conn := dial(t, srv, "")
	env := readEvent(t, conn)
	var sp sessionPayload
	if err := json.Unmarshal(env.Data, &sp); err != nil {
		t.Fatalf("session payload: %v", err)
	}
	before, ok := sessions.Get(sp.SessionID)
	if !ok {
		t.Fatal("session not stored")
	}
	_ = conn.Close()

	// 等服务端处理完断开。
	deadline := time.Now().Add(time.Second)
	for {
		if got, _ := sessions.Get(sp.SessionID); !got.IsOnline {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never went offline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn2 := dial(t, srv, sp.SessionID)
	env = readEvent(t, conn2)
	var sp2 sessionPayload
	if err := json.Unmarshal(env.Data, &sp2); err != nil {
		t.Fatalf("session payload: %v", err)
	}
	if sp2.SessionID != sp.SessionID {
		t.Errorf("resumed session id = %q, want %q", sp2.SessionID, sp.SessionID)
	}

	after, _ := sessions.Get(sp.SessionID)
	if !after.IsOnline {
		t.Error("resumed session not online")
	}
	if after.Name != before.Name || after.Avatar != before.Avatar || after.Color != before.Color {
		t.Error("reconnect regenerated identity")
	}
}

func TestServe_UnknownSessionIDGetsFreshIdentity(t *testing.T) {
	srv, sessions, _ := testServer(t)

	conn := dial(t, srv, "never-issued")
	env := readEvent(t, conn)
	var sp sessionPayload
	if err := json.Unmarshal(env.Data, &sp); err != nil {
		t.Fatalf("session payload: %v", err)
	}
	if sp.SessionID == "never-issued" {
		t.Error("server adopted a session id it never issued")
	}
	if _, ok := sessions.Get(sp.SessionID); !ok {
		t.Error("fresh session not stored")
	}
}

func TestServe_MessageRoundTrip(t *testing.T) {
	srv, _, history := testServer(t)

	conn := dial(t, srv, "")
	readEvent(t, conn) // session
	readEvent(t, conn) // history
	readEvent(t, conn) // users

	payload, _ := json.Marshal(msgSendPayload{Content: "hello there"})
	out, _ := json.Marshal(Envelope{Type: evtMsgSend, Data: payload})
	if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
		t.Fatalf("write: %v", err)
	}

	for {
		env := readEvent(t, conn)
		if env.Type != evtMessage {
			continue
		}
		var got struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(env.Data, &got); err != nil || got.Content != "hello there" {
			t.Errorf("message payload = %s", env.Data)
		}
		break
	}

	if history.Len() != 1 {
		t.Errorf("history length = %d, want 1", history.Len())
	}
}

func TestServe_HistoryReplayedToNewConnection(t *testing.T) {
	srv, _, _ := testServer(t)

	first := dial(t, srv, "")
	readEvent(t, first)
	readEvent(t, first)
	readEvent(t, first)

	payload, _ := json.Marshal(msgSendPayload{Content: "for the record"})
	out, _ := json.Marshal(Envelope{Type: evtMsgSend, Data: payload})
	if err := first.WriteMessage(websocket.TextMessage, out); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		if readEvent(t, first).Type == evtMessage {
			break
		}
	}

	second := dial(t, srv, "")
	readEvent(t, second) // session
	env := readEvent(t, second)
	if env.Type != evtHistoryInit {
		t.Fatalf("second event = %q, want %q", env.Type, evtHistoryInit)
	}
	var msgs []struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(env.Data, &msgs); err != nil {
		t.Fatalf("history payload: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "for the record" {
		t.Errorf("history replay = %s", env.Data)
	}
}
