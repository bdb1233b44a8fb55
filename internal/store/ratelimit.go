package store

import (
	"sync"
	"time"
)

// RateLimiter 按会话维护固定窗口计数：窗口内放行到配额为止，
// 窗口到期后重置。被拒绝的调用不会重置或延长窗口。
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	quota   int
	now     func() time.Time
}

type window struct {
	count   int
	started time.Time
}

func NewRateLimiter(windowDur time.Duration, quota int) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		window:  windowDur,
		quota:   quota,
		now:     time.Now,
	}
}

// Allow 判断会话当前是否允许再发一条消息。
func (r *RateLimiter) Allow(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	w, ok := r.windows[sessionID]
	if !ok || now.Sub(w.started) >= r.window {
		r.windows[sessionID] = &window{count: 1, started: now}
		return true
	}
	if w.count >= r.quota {
		return false
	}
	w.count++
	return true
}

// Forget 清掉会话的限流窗口，随会话淘汰一并调用，避免窗口表无限增长。
func (r *RateLimiter) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, sessionID)
}
