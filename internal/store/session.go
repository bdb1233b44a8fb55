package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"anonchat/internal/geo"
	"anonchat/internal/identity"
	"anonchat/internal/models"
)

// SessionStore 持有全部会话记录，是在线名单的唯一权威来源。
// 记录在断线后保留，超过 staleAfter 仍未重连才会被淘汰。
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*models.Session
	timers     map[string]*time.Timer
	nameMaxLen int
	staleAfter time.Duration
	onEvict    func(sessionID string)
}

func NewSessionStore(nameMaxLen int, staleAfter time.Duration) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*models.Session),
		timers:     make(map[string]*time.Timer),
		nameMaxLen: nameMaxLen,
		staleAfter: staleAfter,
	}
}

// OnEvict 注册会话淘汰后的回调，启动阶段设置一次，用于联动清理限流窗口。
func (s *SessionStore) OnEvict(fn func(sessionID string)) {
	s.onEvict = fn
}

// Attach 把新连接挂到已有会话上并标记在线，返回 nil 表示会话不存在。
// 同一会话的旧连接会被静默顶替，重连同时取消待执行的淘汰定时器。
func (s *SessionStore) Attach(sessionID, connID string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.ConnID = connID
	sess.IsOnline = true
	sess.LastSeen = time.Now()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
	cp := *sess
	return &cp
}

// Create 生成全新会话并写入随机身份与归属地。
func (s *SessionStore) Create(connID string, id identity.Identity, loc geo.Location) *models.Session {
	now := time.Now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		ConnID:    connID,
		Name:      id.Name,
		Avatar:    id.Avatar,
		Color:     id.Color,
		IsOnline:  true,
		Location:  loc.Country,
		Flag:      loc.Flag,
		LastSeen:  now,
		CreatedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	cp := *sess
	return &cp
}

// Get 返回会话记录的副本。
func (s *SessionStore) Get(sessionID string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return *sess, true
}

// UpdateProfile 只覆盖调用方提供的字段，昵称截断并转义后入库。
// 未知会话按无事发生处理。
func (s *SessionStore) UpdateProfile(sessionID, name, avatar, color string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if name != "" {
		sess.Name = Sanitize(name, s.nameMaxLen)
	}
	if avatar != "" {
		sess.Avatar = avatar
	}
	if color != "" {
		sess.Color = color
	}
	cp := *sess
	return &cp
}

// SetCursor 记录最近一次上报的指针位置。
func (s *SessionStore) SetCursor(sessionID string, x, y float64) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	sess.PosX = x
	sess.PosY = y
	cp := *sess
	return &cp
}

// MarkOffline 将会话转为离线，记录保留以便重连。
// 只有 connID 仍是当前挂载的连接时才生效，被顶替的旧连接不会误下线新连接。
func (s *SessionStore) MarkOffline(sessionID, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.ConnID != connID {
		return false
	}
	sess.ConnID = ""
	sess.IsOnline = false
	sess.LastSeen = time.Now()
	return true
}

// ListOnline 返回在线会话的快照副本。
func (s *SessionStore) ListOnline() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.IsOnline {
			out = append(out, *sess)
		}
	}
	return out
}

// Len 返回已知会话总数，含离线但尚未淘汰的记录。
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ScheduleEviction 在宽限期后触发一次淘汰检查，重复调度会替换旧定时器。
func (s *SessionStore) ScheduleEviction(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(s.staleAfter, func() {
		s.EvictIfStale(sessionID)
	})
}

// EvictIfStale 仅当会话仍离线且离线时长达到阈值时删除记录，否则不动。
// 定时器触发时会话可能早已重连，此时检查自然落空。
func (s *SessionStore) EvictIfStale(sessionID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.IsOnline || time.Since(sess.LastSeen) < s.staleAfter {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, sessionID)
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	if onEvict != nil {
		onEvict(sessionID)
	}
	return true
}
