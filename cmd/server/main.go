package main

import (
	"anonchat/internal/config"
	"anonchat/internal/geo"
	clog "anonchat/internal/log"
	"anonchat/internal/server"
	"anonchat/internal/store"
	"anonchat/internal/ws"

	"github.com/rs/zerolog/log"
)

// main 负责加载配置、初始化日志、组装内存状态并启动 Gin 服务。
func main() {
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	sessions := store.NewSessionStore(cfg.NameMaxLen, cfg.StaleAfter)
	history := store.NewMessageLog(cfg.HistoryLimit)
	limiter := store.NewRateLimiter(cfg.RateWindow, cfg.RateQuota)
	// 会话淘汰时顺带清掉对应的限流窗口。
	sessions.OnEvict(limiter.Forget)

	resolver := geo.NewResolver(cfg.GeoBaseURL, cfg.GeoTimeout)

	hub := ws.NewHub(sessions)
	go hub.Run()

	r := server.SetupRouter(cfg, sessions, history, limiter, resolver, hub)
	log.Info().Str("port", cfg.Port).Msg("chat server listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
