package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"anonchat/internal/config"
	"anonchat/internal/geo"
	"anonchat/internal/identity"
	"anonchat/internal/metrics"
	"anonchat/internal/models"
	"anonchat/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxFrameSize = 4096
)

const rateLimitWarning = "Slow down! You're sending messages too fast."

// Client 是一条 websocket 连接；会话本身由 SessionStore 持有，
// 连接断开后会话仍然存活。
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	sessionID string
	connID    string

	sessions *store.SessionStore
	history  *store.MessageLog
	limiter  *store.RateLimiter
	msgMax   int
}

// Serve 处理 websocket 升级：先解析或创建会话，再进入事件循环。
// 客户端通过 session_id 查询参数携带上次拿到的会话标识。
func Serve(hub *Hub, sessions *store.SessionStore, history *store.MessageLog, limiter *store.RateLimiter, resolver *geo.Resolver, cfg config.Config) gin.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin(cfg)}
	return func(c *gin.Context) {
		offered := c.Query("session_id")
		clientIP := c.ClientIP()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("ws upgrade")
			return
		}

		connID := uuid.NewString()
		sess := sessions.Attach(offered, connID)
		if sess == nil {
			// 新访客：生成身份并做一次尽力而为的归属地解析。
			loc := resolver.Resolve(context.Background(), clientIP)
			sess = sessions.Create(connID, identity.Generate(), loc)
			log.Debug().Str("session_id", sess.ID).Str("location", sess.Location).Msg("session created")
		} else {
			log.Debug().Str("session_id", sess.ID).Msg("session resumed")
		}

		client := &Client{
			hub:       hub,
			conn:      conn,
			send:      make(chan []byte, 256),
			done:      make(chan struct{}),
			sessionID: sess.ID,
			connID:    connID,
			sessions:  sessions,
			history:   history,
			limiter:   limiter,
			msgMax:    cfg.MessageMaxLen,
		}

		// 顺序有讲究：客户端必须先收到自己的会话 ID，
		// 再收到历史回放，之后才是名单广播。
		client.send <- encode(evtSession, sessionPayload{SessionID: sess.ID})
		client.send <- encode(evtHistoryInit, history.Snapshot())
		hub.Register(client)

		go client.writePump()
		client.readPump()
	}
}

// checkOrigin 按配置校验握手来源，dev 环境放行所有来源。
func checkOrigin(cfg config.Config) func(*http.Request) bool {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || cfg.Env == "dev" {
			return true
		}
		return allowed[strings.TrimRight(origin, "/")]
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.handle(env)
	}
}

// handle 按事件类型分发，畸形载荷一律按缺省值处理，绝不中断连接。
func (c *Client) handle(env Envelope) {
	switch env.Type {
	case evtMsgSend:
		var p msgSendPayload
		_ = json.Unmarshal(env.Data, &p)
		c.onMessage(p.Content)
	case evtUpdateUser:
		var p updateUserPayload
		_ = json.Unmarshal(env.Data, &p)
		if c.sessions.UpdateProfile(c.sessionID, p.Username, p.Avatar, p.Color) != nil {
			c.hub.RefreshRoster()
		}
	case evtCursorMove:
		var p cursorMovePayload
		_ = json.Unmarshal(env.Data, &p)
		var x, y float64
		if p.X != nil {
			x = *p.X
		}
		if p.Y != nil {
			y = *p.Y
		}
		if sess := c.sessions.SetCursor(c.sessionID, x, y); sess != nil {
			c.hub.Relay(c, encode(evtCursorUpdate, cursorUpdatePayload{
				ID: sess.ID, X: x, Y: y, Name: sess.Name, Color: sess.Color,
			}))
		}
	case evtTyping:
		if sess, ok := c.sessions.Get(c.sessionID); ok {
			c.hub.Relay(c, encode(evtUserTyping, typingPayload{ID: sess.ID, Username: sess.Name}))
		}
	case evtStopTyping:
		c.hub.Relay(c, encode(evtUserStopTyp, typingPayload{ID: c.sessionID}))
	}
}

func (c *Client) onMessage(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if !c.limiter.Allow(c.sessionID) {
		metrics.RateLimitedTotal.Inc()
		// 警告只发给触发者本人，不广播。
		c.trySend(encode(evtWarning, warningPayload{Message: rateLimitWarning}))
		return
	}
	sess, ok := c.sessions.Get(c.sessionID)
	if !ok {
		return
	}
	msg := models.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Flag:      sess.Flag,
		Country:   sess.Location,
		Username:  sess.Name,
		Avatar:    sess.Avatar,
		Color:     sess.Color,
		Content:   store.Sanitize(content, c.msgMax),
		CreatedAt: time.Now(),
	}
	c.history.Append(msg)
	metrics.WsMessagesTotal.Inc()
	c.hub.Broadcast(encode(evtMessage, msg))
}

// trySend 直接塞进本连接的写队列，队列满则丢弃。
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}

// close 通知 writePump 收尾，send 通道本身从不关闭，避免并发写入崩溃。
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
