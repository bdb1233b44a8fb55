package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	GeoBaseURL     string
	GeoTimeout     time.Duration
	HistoryLimit   int
	RateWindow     time.Duration
	RateQuota      int
	MessageMaxLen  int
	NameMaxLen     int
	StaleAfter     time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load 读取环境变量组装配置，缺省值与原服务保持一致。
func Load() Config {
	_ = godotenv.Load()

	origins := getenv("ALLOWED_ORIGINS", "http://localhost:3000")
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	return Config{
		Port:           getenv("APP_PORT", "3001"),
		Env:            getenv("APP_ENV", "dev"),
		AllowedOrigins: allowed,
		GeoBaseURL:     getenv("GEO_BASE_URL", "http://ip-api.com"),
		GeoTimeout:     getenvDuration("GEO_TIMEOUT", 3*time.Second),
		HistoryLimit:   getenvInt("HISTORY_LIMIT", 100),
		RateWindow:     getenvDuration("RATE_WINDOW", 10*time.Second),
		RateQuota:      getenvInt("RATE_QUOTA", 5),
		MessageMaxLen:  getenvInt("MESSAGE_MAX_LEN", 500),
		NameMaxLen:     getenvInt("NAME_MAX_LEN", 30),
		StaleAfter:     getenvDuration("STALE_AFTER", 30*time.Minute),
	}
}

// Validate 检查配置是否可用于启动服务。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if len(cfg.AllowedOrigins) == 0 && cfg.Env != "dev" {
		return errors.New("allowed origins are required outside dev")
	}
	if cfg.HistoryLimit <= 0 || cfg.RateQuota <= 0 {
		return errors.New("history limit and rate quota must be positive")
	}
	if cfg.RateWindow <= 0 || cfg.StaleAfter <= 0 {
		return errors.New("rate window and stale duration must be positive")
	}
	return nil
}
