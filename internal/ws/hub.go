package ws

import (
	"anonchat/internal/metrics"
	"anonchat/internal/store"
)

// Hub 维护全部在线连接，在单一事件循环里串行处理注册、注销与分发，
// 因此广播顺序即发射顺序，无需额外加锁。
type Hub struct {
	sessions   *store.SessionStore
	clients    map[*Client]bool
	bySession  map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	relays     chan relayed
	roster     chan struct{}
}

type relayed struct {
	from *Client
	data []byte
}

func NewHub(sessions *store.SessionStore) *Hub {
	return &Hub{
		sessions:   sessions,
		clients:    make(map[*Client]bool),
		bySession:  make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		relays:     make(chan relayed, 256),
		roster:     make(chan struct{}, 1),
	}
}

// Register 把已完成会话解析的连接纳入分发名单。
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister 在连接结束时回收资源并转为离线。
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast 发给所有在线连接，含发送者。
func (h *Hub) Broadcast(data []byte) { h.broadcast <- data }

// Relay 发给除发送者以外的所有在线连接。
func (h *Hub) Relay(from *Client, data []byte) { h.relays <- relayed{from: from, data: data} }

// RefreshRoster 请求向所有连接重播一次在线名单。
func (h *Hub) RefreshRoster() {
	select {
	case h.roster <- struct{}{}:
	default:
	}
}

// Run 串行消费全部事件，直到进程退出。
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			// 同一会话重连时旧连接被顶替下线。
			if old, ok := h.bySession[c.sessionID]; ok && old != c {
				h.remove(old)
			}
			h.clients[c] = true
			h.bySession[c.sessionID] = c
			metrics.WsConnections.Inc()
			h.sendRoster()
		case c := <-h.unregister:
			wasIn := h.clients[c]
			h.remove(c)
			if h.sessions.MarkOffline(c.sessionID, c.connID) {
				h.sessions.ScheduleEviction(c.sessionID)
			}
			if wasIn {
				h.sendRoster()
			}
		case msg := <-h.broadcast:
			h.fanout(msg, nil)
		case r := <-h.relays:
			h.fanout(r.data, r.from)
		case <-h.roster:
			h.sendRoster()
		}
	}
}

// remove 把连接从全部索引中摘除并关闭，重复调用无害。
func (h *Hub) remove(c *Client) {
	if h.clients[c] {
		delete(h.clients, c)
		metrics.WsConnections.Dec()
	}
	if h.bySession[c.sessionID] == c {
		delete(h.bySession, c.sessionID)
	}
	c.close()
}

// fanout 投递一条消息，写缓冲已满的慢连接直接踢下线。
func (h *Hub) fanout(msg []byte, skip *Client) {
	var dropped []*Client
	for c := range h.clients {
		if c == skip {
			continue
		}
		select {
		case c.send <- msg:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		h.remove(c)
		if h.sessions.MarkOffline(c.sessionID, c.connID) {
			h.sessions.ScheduleEviction(c.sessionID)
		}
	}
	if len(dropped) > 0 {
		h.sendRoster()
	}
}

func (h *Hub) sendRoster() {
	msg := encode(evtUsers, h.sessions.ListOnline())
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}
