// Package httpapi serves the overlay surface: the recent-window listing,
// the SSE and WebSocket row streams, health, build info, and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/eaglechat/internal/core"
)

// Store is the read side of the session the API exposes.
type Store interface {
	Recent() []core.RenderedMessage
}

// Options configure the server. Zero values disable the optional layers.
type Options struct {
	Addr            string
	CORSOrigins     []string
	RateLimitRPS    int
	RateLimitBurst  int
	EnableMetrics   bool
	EnableAccessLog bool
	EnablePprof     bool
	Build           BuildInfo
	Registry        *prometheus.Registry
	ConfigSnapshot  func() map[string]any
}

// client is one connected stream consumer. The channel is drained by the
// transport's handler goroutine; Broadcast never blocks on it.
type client struct {
	ch        chan core.RenderedMessage
	transport string
}

type Server struct {
	httpServer *http.Server
	store      Store
	opts       Options
	mux        *http.ServeMux
	metrics    *Metrics
	limiter    *ipRateLimiter
	cors       *corsPolicy

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func New(store Store, opts Options) *Server {
	srv := &Server{
		store:   store,
		opts:    opts,
		clients: make(map[*client]struct{}),
		limiter: newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cors:    newCORSPolicy(opts.CORSOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/messages", srv.handleMessages)
	mux.HandleFunc("/stream", srv.handleStream)
	mux.HandleFunc("/ws", srv.handleWS)
	mux.HandleFunc("/info", srv.handleInfo)

	if opts.EnableMetrics {
		srv.metrics = newMetrics(opts.Registry)
		mux.Handle("/metrics", srv.metrics.Handler())
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv.mux = mux
	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Mux exposes the underlying mux so the admin surface can register its
// routes before Start.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// wrap applies the middleware chain: CORS, rate limiting, gzip, access
// logging, and request metrics.
func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newResponseRecorder(w)

		observe := func() {
			if s.opts.EnableAccessLog {
				log.Printf("http %s %s %d %dB %s", r.Method, r.URL.Path, rec.Status(), rec.Bytes(), time.Since(start))
			}
			s.metrics.ObserveRequest(r.URL.Path, r.Method, rec.Status(), time.Since(start), rec.Bytes())
		}

		if handled, _ := s.cors.handlePreflight(rec, r); handled {
			observe()
			return
		}
		if !s.cors.applyHeaders(rec, r) {
			http.Error(rec, "origin not allowed", http.StatusForbidden)
			observe()
			return
		}
		if s.limiter != nil && !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			http.Error(rec, "rate limited", http.StatusTooManyRequests)
			observe()
			return
		}

		if gz, ok := maybeGzip(rec, r); ok {
			defer gz.Close()
		}

		next.ServeHTTP(rec, r)
		observe()
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows := s.store.Recent()
	out := make([]core.RenderedMessage, 0, len(rows))
	for _, row := range rows {
		if filters.Matches(row) {
			out = append(out, row)
		}
	}
	if filters.Order == OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan core.RenderedMessage, 256), transport: "sse"}
	if !s.addClient(c) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.removeClient(c)

	s.metrics.IncSSEClients(1)
	defer s.metrics.IncSSEClients(-1)

	fmt.Fprintf(w, ":ok\n\n")
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ":ping\n\n")
			flusher.Flush()
		case row, ok := <-c.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(row)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
			s.metrics.IncMessagesSent("sse")
		}
	}
}

func (s *Server) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// Broadcast fans a rendered row out to every connected stream client. Slow
// clients drop rows rather than blocking the render pipeline.
func (s *Server) Broadcast(row core.RenderedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shutdown closes the client channels under this mutex; a late row must
	// not send on them.
	if s.closed {
		return
	}

	for c := range s.clients {
		select {
		case c.ch <- row:
		default:
			s.metrics.IncBroadcastDrops(c.transport)
		}
	}
}

func (s *Server) Start() error {
	log.Printf("http api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for c := range s.clients {
		close(c.ch)
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
