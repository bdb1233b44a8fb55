package ws

import "encoding/json"

// 事件名沿用原前端协议，服务端与客户端各自一组。
const (
	evtSession      = "session"
	evtHistoryInit  = "msgs-receive-init"
	evtUsers        = "users"
	evtMessage      = "msg-receive"
	evtWarning      = "warning"
	evtCursorUpdate = "cursor-update"
	evtUserTyping   = "user-typing"
	evtUserStopTyp  = "user-stop-typing"

	evtMsgSend    = "msg-send"
	evtUpdateUser = "update-user"
	evtCursorMove = "cursor-move"
	evtTyping     = "typing"
	evtStopTyping = "stop-typing"
)

// Envelope 是入站事件的统一外层，载荷按事件类型二次解析。
// 解析失败按空载荷处理，连接不会因此中断。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type msgSendPayload struct {
	Content string `json:"content"`
}

type updateUserPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Color    string `json:"color"`
}

// 指针字段区分"未提供"与 0，缺失或非数值一律按 0 处理。
type cursorMovePayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type warningPayload struct {
	Message string `json:"message"`
}

type cursorUpdatePayload struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
}

type typingPayload struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// encode 把出站事件打包为 {type, data} 信封。
func encode(typ string, data interface{}) []byte {
	b, _ := json.Marshal(struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}{Type: typ, Data: data})
	return b
}
