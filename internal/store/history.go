package store

import (
	"sync"

	"anonchat/internal/models"
)

// MessageLog 保存最近的聊天消息，超出容量时从头部淘汰，进程重启即清空。
type MessageLog struct {
	mu    sync.RWMutex
	msgs  []models.Message
	limit int
}

func NewMessageLog(limit int) *MessageLog {
	return &MessageLog{limit: limit}
}

// Append 追加一条消息并裁剪到容量上限。
func (l *MessageLog) Append(m models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
	if n := len(l.msgs) - l.limit; n > 0 {
		l.msgs = append(l.msgs[:0], l.msgs[n:]...)
	}
}

// Snapshot 返回按到达顺序排列的消息副本，用于新连接回放。
func (l *MessageLog) Snapshot() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}
