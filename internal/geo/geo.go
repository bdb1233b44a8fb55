package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Location 是按 IP 解析出的粗略归属地，解析失败时退化为 Unknown。
type Location struct {
	Country string
	Flag    string
}

var (
	Local   = Location{Country: "Local", Flag: "🏠"}
	Unknown = Location{Country: "Unknown", Flag: "🌍"}
)

// Resolver 调用 ip-api 风格的服务解析 IP 归属地，任何失败都按 Unknown 处理。
type Resolver struct {
	baseURL string
	client  *http.Client
}

func NewResolver(baseURL string, timeout time.Duration) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve 查询 IP 的国家与旗帜，内网与回环地址直接短路为 Local，不发起外呼。
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Unknown
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return Local
	}

	url := fmt.Sprintf("%s/json/%s?fields=country,countryCode", r.baseURL, parsed.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unknown
	}
	resp, err := r.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("ip", parsed.String()).Msg("geo lookup failed")
		return Unknown
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Unknown
	}

	var body struct {
		Country     string `json:"country"`
		CountryCode string `json:"countryCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Country == "" {
		return Unknown
	}
	return Location{Country: body.Country, Flag: FlagFor(body.CountryCode)}
}

// FlagFor 把两位国家码转换为区域指示符 emoji，非法输入返回地球。
func FlagFor(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return Unknown.Flag
	}
	var b strings.Builder
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return Unknown.Flag
		}
		b.WriteRune(0x1F1E6 + c - 'A')
	}
	return b.String()
}
