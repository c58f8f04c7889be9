package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/eaglechat/internal/config"
	"github.com/you/eaglechat/internal/core"
	"github.com/you/eaglechat/internal/helix"
	httpadmin "github.com/you/eaglechat/internal/http"
	"github.com/you/eaglechat/internal/httpapi"
	"github.com/you/eaglechat/internal/render"
	"github.com/you/eaglechat/internal/seventv"
	"github.com/you/eaglechat/internal/twitchirc"
	"github.com/you/eaglechat/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag     bool
		channel         string
		httpAddr        string
		windowSize      int
		twNick          string
		twTLS           bool
		twClientID      string
		twClientSecret  string
		twSecretFile    string
		httpCorsOrigins string
		httpRateRPS     int
		httpRateBurst   int
		httpMetrics     bool
		httpAccessLog   bool
		httpPprof       bool
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&channel, "channel", "", "Twitch channel to render (without #)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP overlay address (e.g., :8080)")
	flag.IntVar(&windowSize, "window-size", 0, "Number of chat rows to keep")
	flag.StringVar(&twNick, "twitch-nick", "", "IRC nickname (default: anonymous justinfan)")
	flag.BoolVar(&twTLS, "twitch-tls", true, "Use TLS (port 6697) for Twitch IRC connection")
	flag.StringVar(&twClientID, "twitch-client-id", "", "Twitch application client ID")
	flag.StringVar(&twClientSecret, "twitch-client-secret", "", "Twitch application client secret")
	flag.StringVar(&twSecretFile, "twitch-client-secret-file", "", "Path to file containing the client secret")
	flag.StringVar(&httpCorsOrigins, "http-cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 0, "Maximum HTTP requests per second per client (0 disables)")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 0, "Burst size for HTTP rate limiter")
	flag.BoolVar(&httpMetrics, "http-metrics", true, "Expose Prometheus metrics endpoint")
	flag.BoolVar(&httpAccessLog, "http-access-log", false, "Log HTTP access records")
	flag.BoolVar(&httpPprof, "http-pprof", false, "Expose pprof handlers under /debug/pprof")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"overlay version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()

	if overrides["channel"] {
		cfg.Channel = strings.TrimSpace(channel)
	}
	if overrides["http-addr"] {
		cfg.HTTPAddr = strings.TrimSpace(httpAddr)
	}
	if overrides["window-size"] && windowSize > 0 {
		cfg.WindowSize = windowSize
	}
	if overrides["twitch-nick"] {
		cfg.Twitch.Nick = strings.TrimSpace(twNick)
	}
	if overrides["twitch-tls"] {
		cfg.Twitch.TLS = twTLS
	}
	if overrides["twitch-client-id"] {
		cfg.Twitch.ClientID = strings.TrimSpace(twClientID)
	}
	if overrides["twitch-client-secret"] {
		cfg.Twitch.ClientSecret = strings.TrimSpace(twClientSecret)
	}
	if overrides["twitch-client-secret-file"] {
		cfg.Twitch.ClientSecretFile = strings.TrimSpace(twSecretFile)
		if cfg.Twitch.ClientSecretFile != "" && !overrides["twitch-client-secret"] {
			if raw, err := os.ReadFile(cfg.Twitch.ClientSecretFile); err != nil {
				log.Printf("overlay: client secret file: %v", err)
			} else {
				cfg.Twitch.ClientSecret = strings.TrimSpace(string(raw))
			}
		}
	}
	if overrides["http-cors-origins"] {
		cfg.HTTP.CORSOrigins = nil
		for _, origin := range strings.Split(httpCorsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.HTTP.CORSOrigins = append(cfg.HTTP.CORSOrigins, origin)
			}
		}
	}
	if overrides["http-rate-rps"] {
		cfg.HTTP.RateLimitRPS = httpRateRPS
	}
	if overrides["http-rate-burst"] {
		cfg.HTTP.RateLimitBurst = httpRateBurst
	}
	if overrides["http-metrics"] {
		cfg.HTTP.EnableMetrics = httpMetrics
	}
	if overrides["http-access-log"] {
		cfg.HTTP.EnableAccessLog = httpAccessLog
	}
	if overrides["http-pprof"] {
		cfg.HTTP.EnablePprof = httpPprof
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("overlay: %v", err)
	}

	configSnapshot := cfg.Redacted()
	log.Printf("%s", cfg.SummaryJSON())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("overlay: received %s, shutting down", sig)
		cancel()
	}()

	helixClient := helix.NewClient(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret)
	helixClient.CacheTTL = cfg.Twitch.CacheTTL
	thirdParty := &seventv.Client{}

	if cfg.Twitch.ClientSecretFile != "" {
		if err := render.WatchClientSecret(cfg.Twitch.ClientSecretFile, helixClient); err != nil {
			log.Printf("overlay: watch client secret: %v", err)
		}
	}

	registry := prometheus.NewRegistry()

	// The API server is created after the session, so the fan-out hook is
	// bound late; rows rendered before Start never reach it anyway.
	var api *httpapi.Server

	session := render.NewSession(render.Options{
		Channel:    cfg.Channel,
		WindowSize: cfg.WindowSize,
		Helix:      helixClient,
		ThirdParty: thirdParty,
		Registry:   registry,
		NewTransport: func(ch string, handler func(core.ChatMessage)) render.Transport {
			return twitchirc.New(twitchirc.Config{
				Channel: ch,
				Nick:    cfg.Twitch.Nick,
				UseTLS:  cfg.Twitch.TLS,
			}, handler)
		},
		OnRow: func(row core.RenderedMessage) {
			if api != nil {
				api.Broadcast(row)
			}
		},
	})

	for _, b := range cfg.CustomBadges {
		session.CustomBadges().Add(b.Username, b.ImageURL)
	}

	build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
	if version.BuildTime != "" && version.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
			build.BuiltAt = t
		}
	}

	api = httpapi.New(session, httpapi.Options{
		Addr:            cfg.HTTPAddr,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		RateLimitRPS:    cfg.HTTP.RateLimitRPS,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		EnableMetrics:   cfg.HTTP.EnableMetrics,
		EnableAccessLog: cfg.HTTP.EnableAccessLog,
		EnablePprof:     cfg.HTTP.EnablePprof,
		Build:           build,
		Registry:        registry,
	})

	admin := httpadmin.New(session, func() map[string]any { return configSnapshot })
	admin.Register(api.Mux())

	if err := session.Start(ctx); err != nil {
		log.Fatalf("overlay: start session: %v", err)
	}

	go func() {
		if err := api.Start(); err != nil {
			log.Printf("overlay: http api: %v", err)
			cancel()
		}
	}()
	log.Printf("overlay: http api ready on %s", cfg.HTTPAddr)

	<-ctx.Done()

	session.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("overlay: http api shutdown: %v", err)
	}
	cancelShutdown()

	// allow the transport goroutine to finish cleanly
	time.Sleep(100 * time.Millisecond)
	log.Printf("overlay: shutdown complete")
}
