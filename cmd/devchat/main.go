// Command devchat runs the render pipeline and HTTP surface against
// synthetic chat instead of a live IRC connection, for overlay frontend
// development. Messages are injected via POST /emit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/colorize"
	"github.com/you/eaglechat/internal/core"
	"github.com/you/eaglechat/internal/emotes"
	"github.com/you/eaglechat/internal/httpapi"
	"github.com/you/eaglechat/internal/render"
)

type emitReq struct {
	ID       string            `json:"id,omitempty"`
	Username string            `json:"username"`
	Text     string            `json:"text"`
	Ts       time.Time         `json:"ts,omitempty"`
	Colour   string            `json:"colour,omitempty"`
	Badges   map[string]string `json:"badges,omitempty"`
}

// fixtureHelix serves a small canned catalog so emitted messages exercise
// emote and badge resolution without Twitch credentials.
type fixtureHelix struct{}

func (fixtureHelix) UserID(context.Context, string) (string, error) { return "0", nil }

func (fixtureHelix) GlobalEmotes(context.Context) ([]emotes.PlatformEmote, error) {
	return []emotes.PlatformEmote{
		{
			ID:   "25",
			Name: "Kappa",
			Images: emotes.PlatformImages{
				URL1x: "https://static-cdn.jtvnw.net/emoticons/v2/25/default/dark/1.0",
				URL2x: "https://static-cdn.jtvnw.net/emoticons/v2/25/default/dark/2.0",
				URL4x: "https://static-cdn.jtvnw.net/emoticons/v2/25/default/dark/3.0",
			},
		},
	}, nil
}

func (fixtureHelix) ChannelEmotes(context.Context, string) ([]emotes.PlatformEmote, error) {
	return nil, nil
}

func (fixtureHelix) BadgeCatalog(context.Context, string) (badges.Catalog, error) {
	return badges.Catalog{
		Global: badges.MapSets([]badges.Set{
			{
				SetID: "moderator",
				Versions: []badges.Version{{
					ID:         "1",
					ImageURL1x: "https://static-cdn.jtvnw.net/badges/v1/moderator/1",
					ImageURL4x: "https://static-cdn.jtvnw.net/badges/v1/moderator/3",
				}},
			},
		}),
	}, nil
}

func (fixtureHelix) Invalidate(string) {}

type fixtureThirdParty struct{}

func (fixtureThirdParty) GlobalEmotes(context.Context) ([]emotes.ThirdPartyEmote, error) {
	return []emotes.ThirdPartyEmote{
		{
			ID:   "dev-ez",
			Name: "EZ",
			Data: emotes.ThirdPartyData{
				ID:   "dev-ez",
				Name: "EZ",
				Host: emotes.ThirdPartyHost{
					URL: "//cdn.7tv.app/emote/dev-ez",
					Files: []emotes.ThirdPartyFile{
						{Name: "2x.webp", Width: 64, Height: 64, Format: "WEBP"},
					},
				},
			},
		},
	}, nil
}

func (fixtureThirdParty) ChannelEmotes(context.Context, string) ([]emotes.ThirdPartyEmote, error) {
	return nil, nil
}

type noopTransport struct{}

func (noopTransport) Connect(context.Context) error { return nil }
func (noopTransport) Disconnect()                   {}

func main() {
	var (
		addr    string
		channel string
	)

	flag.StringVar(&addr, "addr", ":8765", "HTTP listen address")
	flag.StringVar(&channel, "channel", "devchannel", "Channel name shown in status")
	flag.Parse()

	var api *httpapi.Server

	session := render.NewSession(render.Options{
		Channel:    channel,
		Helix:      fixtureHelix{},
		ThirdParty: fixtureThirdParty{},
		NewTransport: func(string, func(core.ChatMessage)) render.Transport {
			return noopTransport{}
		},
		OnRow: func(row core.RenderedMessage) {
			if api != nil {
				api.Broadcast(row)
			}
		},
	})

	if err := session.Start(context.Background()); err != nil {
		log.Fatalf("devchat: start session: %v", err)
	}

	api = httpapi.New(session, httpapi.Options{Addr: addr, EnableMetrics: true})

	api.Mux().HandleFunc("POST /emit", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req emitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Text == "" {
			http.Error(w, "username and text required", http.StatusBadRequest)
			return
		}
		if req.Ts.IsZero() {
			req.Ts = time.Now().UTC()
		}
		if req.ID == "" {
			req.ID = "dev-" + req.Ts.Format("20060102T150405.000000000")
		}
		if req.Colour == "" {
			req.Colour = colorize.Fallback(req.Username)
		}

		session.Handle(core.ChatMessage{
			ID:          req.ID,
			Ts:          req.Ts,
			Username:    req.Username,
			DisplayName: req.Username,
			Text:        req.Text,
			Colour:      req.Colour,
			Badges:      req.Badges,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": req.ID})
	})

	log.Printf("devchat listening on %s (channel=%s)", addr, channel)
	if err := api.Start(); err != nil {
		log.Fatal(err)
	}
}
