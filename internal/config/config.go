// Package config loads the overlay service configuration from EAGLECHAT_*
// environment variables, with a .env file loaded first when present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Channel    string
	HTTPAddr   string
	WindowSize int

	Twitch TwitchConfig
	HTTP   HTTPConfig

	CustomBadges []CustomBadge
}

type TwitchConfig struct {
	ClientID         string
	ClientSecret     string
	ClientSecretFile string
	Nick             string
	TLS              bool
	CacheTTL         time.Duration
}

type HTTPConfig struct {
	CORSOrigins     []string
	RateLimitRPS    int
	RateLimitBurst  int
	EnableMetrics   bool
	EnableAccessLog bool
	EnablePprof     bool
}

// CustomBadge is one seeded badge override from configuration.
type CustomBadge struct {
	Username string
	ImageURL string
}

const (
	defaultHTTPAddr   = ":8080"
	defaultWindowSize = 20
)

func Load() Config {
	// best effort; a missing .env just means the environment is the source
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Channel = strings.TrimSpace(os.Getenv("EAGLECHAT_CHANNEL"))
	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("EAGLECHAT_HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	cfg.WindowSize = readInt("EAGLECHAT_WINDOW_SIZE", defaultWindowSize)

	cfg.Twitch.ClientID = strings.TrimSpace(os.Getenv("EAGLECHAT_TWITCH_CLIENT_ID"))
	cfg.Twitch.ClientSecret = strings.TrimSpace(os.Getenv("EAGLECHAT_TWITCH_CLIENT_SECRET"))
	cfg.Twitch.ClientSecretFile = strings.TrimSpace(os.Getenv("EAGLECHAT_TWITCH_CLIENT_SECRET_FILE"))
	if cfg.Twitch.ClientSecret == "" && cfg.Twitch.ClientSecretFile != "" {
		if raw, err := os.ReadFile(cfg.Twitch.ClientSecretFile); err == nil {
			cfg.Twitch.ClientSecret = strings.TrimSpace(string(raw))
		}
	}
	cfg.Twitch.Nick = strings.TrimSpace(os.Getenv("EAGLECHAT_TWITCH_NICK"))
	cfg.Twitch.TLS = readBool("EAGLECHAT_TWITCH_TLS", true)
	cfg.Twitch.CacheTTL = time.Duration(readInt("EAGLECHAT_CACHE_TTL_SECONDS", 0)) * time.Second

	cfg.HTTP.CORSOrigins = splitList(os.Getenv("EAGLECHAT_CORS_ORIGINS"))
	cfg.HTTP.RateLimitRPS = readInt("EAGLECHAT_RATE_LIMIT_RPS", 0)
	cfg.HTTP.RateLimitBurst = readInt("EAGLECHAT_RATE_LIMIT_BURST", 0)
	cfg.HTTP.EnableMetrics = readBool("EAGLECHAT_METRICS", true)
	cfg.HTTP.EnableAccessLog = readBool("EAGLECHAT_ACCESS_LOG", false)
	cfg.HTTP.EnablePprof = readBool("EAGLECHAT_PPROF", false)

	cfg.CustomBadges = parseCustomBadges(os.Getenv("EAGLECHAT_CUSTOM_BADGES"))

	return cfg
}

// Validate reports the first startup-fatal problem. Helix credentials are
// required; anonymous chat works without them but the overlay would render
// every message without emotes or badges, which is a misconfiguration, not a
// degradation.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("config: EAGLECHAT_CHANNEL is required")
	}
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("config: EAGLECHAT_TWITCH_CLIENT_ID is required")
	}
	if c.Twitch.ClientSecret == "" {
		return fmt.Errorf("config: EAGLECHAT_TWITCH_CLIENT_SECRET (or _FILE) is required")
	}
	return nil
}

// parseCustomBadges parses "user=url,user=url". Malformed entries are
// skipped.
func parseCustomBadges(raw string) []CustomBadge {
	var out []CustomBadge
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, url, ok := strings.Cut(entry, "=")
		user = strings.TrimSpace(user)
		url = strings.TrimSpace(url)
		if !ok || user == "" || url == "" {
			continue
		}
		out = append(out, CustomBadge{Username: user, ImageURL: url})
	}
	return out
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Summary is the startup log payload with secrets redacted.
type Summary struct {
	Channel    string `json:"channel"`
	HTTPAddr   string `json:"http_addr"`
	WindowSize int    `json:"window_size"`

	Twitch TwitchSummary `json:"twitch"`
	HTTP   HTTPSummary   `json:"http"`

	CustomBadges int `json:"custom_badges"`
}

type TwitchSummary struct {
	ClientID         string `json:"client_id,omitempty"`
	ClientSecret     string `json:"client_secret,omitempty"`
	ClientSecretFile string `json:"client_secret_file,omitempty"`
	Nick             string `json:"nick,omitempty"`
	TLS              bool   `json:"tls"`
	CacheTTLSeconds  int    `json:"cache_ttl_seconds"`
}

type HTTPSummary struct {
	CORSOrigins     int  `json:"cors_origins"`
	RateLimitRPS    int  `json:"rate_limit_rps"`
	RateLimitBurst  int  `json:"rate_limit_burst"`
	EnableMetrics   bool `json:"metrics"`
	EnableAccessLog bool `json:"access_log"`
	EnablePprof     bool `json:"pprof"`
}

func (c Config) Summary() Summary {
	return Summary{
		Channel:    c.Channel,
		HTTPAddr:   c.HTTPAddr,
		WindowSize: c.WindowSize,
		Twitch: TwitchSummary{
			ClientID:         redactString(c.Twitch.ClientID),
			ClientSecret:     redactString(c.Twitch.ClientSecret),
			ClientSecretFile: c.Twitch.ClientSecretFile,
			Nick:             c.Twitch.Nick,
			TLS:              c.Twitch.TLS,
			CacheTTLSeconds:  int(c.Twitch.CacheTTL / time.Second),
		},
		HTTP: HTTPSummary{
			CORSOrigins:     len(c.HTTP.CORSOrigins),
			RateLimitRPS:    c.HTTP.RateLimitRPS,
			RateLimitBurst:  c.HTTP.RateLimitBurst,
			EnableMetrics:   c.HTTP.EnableMetrics,
			EnableAccessLog: c.HTTP.EnableAccessLog,
			EnablePprof:     c.HTTP.EnablePprof,
		},
		CustomBadges: len(c.CustomBadges),
	}
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

// Redacted returns the full configuration with secrets masked, for the
// admin status surface.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"channel":     c.Channel,
		"http_addr":   c.HTTPAddr,
		"window_size": c.WindowSize,
		"twitch": map[string]any{
			"client_id":          redactString(c.Twitch.ClientID),
			"client_secret":      redactString(c.Twitch.ClientSecret),
			"client_secret_file": c.Twitch.ClientSecretFile,
			"nick":               c.Twitch.Nick,
			"tls":                c.Twitch.TLS,
			"cache_ttl_seconds":  int(c.Twitch.CacheTTL / time.Second),
		},
		"http": map[string]any{
			"cors_origins":     append([]string(nil), c.HTTP.CORSOrigins...),
			"rate_limit_rps":   c.HTTP.RateLimitRPS,
			"rate_limit_burst": c.HTTP.RateLimitBurst,
			"metrics":          c.HTTP.EnableMetrics,
			"access_log":       c.HTTP.EnableAccessLog,
			"pprof":            c.HTTP.EnablePprof,
		},
		"custom_badges": len(c.CustomBadges),
	}
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
