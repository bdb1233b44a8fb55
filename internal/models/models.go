package models

import "time"

// Session 表示一个匿名访客的持久会话，断线后仍保留在内存中等待重连或淘汰。
type Session struct {
	ID        string    `json:"id"`
	ConnID    string    `json:"-"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Color     string    `json:"color"`
	IsOnline  bool      `json:"isOnline"`
	PosX      float64   `json:"posX"`
	PosY      float64   `json:"posY"`
	Location  string    `json:"location"`
	Flag      string    `json:"flag"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message 是一条聊天消息，作者信息在发送时刻快照，此后不再变化。
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Flag      string    `json:"flag"`
	Country   string    `json:"country"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Color     string    `json:"color"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
