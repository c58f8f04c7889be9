// Package httpadmin registers the operator surface on the API mux: channel
// switching, catalog reloads, custom badge management, and session status.
package httpadmin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/render"
)

// Controller is the slice of the session the admin surface drives.
type Controller interface {
	SwitchChannel(ctx context.Context, channel string) error
	Reload(ctx context.Context) error
	Status() render.Status
	CustomBadges() *badges.CustomBadges
}

type Server struct {
	ctl            Controller
	configSnapshot func() map[string]any
}

func New(ctl Controller, configSnapshot func() map[string]any) *Server {
	return &Server{ctl: ctl, configSnapshot: configSnapshot}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/admin/status", s.handleStatus)
	mux.HandleFunc("/admin/channel", s.handleChannel)
	mux.HandleFunc("/admin/reload", s.handleReload)
	mux.HandleFunc("/admin/custom-badges", s.handleCustomBadges)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]any{"session": s.ctl.Status()}
	if s.configSnapshot != nil {
		payload["config"] = s.configSnapshot()
	}
	writeJSON(w, payload)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	if err := s.ctl.SwitchChannel(r.Context(), channel); err != nil {
		http.Error(w, "switch failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"ok": "true", "channel": channel})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctl.Reload(r.Context()); err != nil {
		http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"ok": "true"})
}

func (s *Server) handleCustomBadges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.ctl.CustomBadges().List())
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			ImageURL string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.ImageURL = strings.TrimSpace(req.ImageURL)
		if req.Username == "" || req.ImageURL == "" {
			http.Error(w, "username and image_url are required", http.StatusBadRequest)
			return
		}
		s.ctl.CustomBadges().Add(req.Username, req.ImageURL)
		writeJSON(w, map[string]string{"ok": "true"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(payload)
}
