package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/you/eaglechat/internal/core"
)

const wsWriteTimeout = 5 * time.Second

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(baseWriter(w), r, &websocket.AcceptOptions{
		OriginPatterns: s.wsOriginPatterns(),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c := &client{ch: make(chan core.RenderedMessage, 256), transport: "ws"}
	if !s.addClient(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.removeClient(c)

	s.metrics.IncWSClients(1)
	defer s.metrics.IncWSClients(-1)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-c.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(row)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
			s.metrics.IncMessagesSent("ws")
		}
	}
}

// wsOriginPatterns maps the CORS origin list onto websocket origin host
// patterns. With no configured origins the library's same-host default
// applies.
func (s *Server) wsOriginPatterns() []string {
	var patterns []string
	for _, origin := range s.opts.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		origin = strings.TrimPrefix(origin, "https://")
		origin = strings.TrimPrefix(origin, "http://")
		patterns = append(patterns, origin)
	}
	return patterns
}
