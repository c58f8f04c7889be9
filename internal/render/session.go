package render

import (
	"context"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/command"
	"github.com/you/eaglechat/internal/core"
	"github.com/you/eaglechat/internal/emotes"
	"github.com/you/eaglechat/internal/rendertrace"
)

// HelixAPI is the slice of the Helix client the session needs.
type HelixAPI interface {
	UserID(ctx context.Context, login string) (string, error)
	BadgeCatalog(ctx context.Context, broadcasterID string) (badges.Catalog, error)
	GlobalEmotes(ctx context.Context) ([]emotes.PlatformEmote, error)
	ChannelEmotes(ctx context.Context, broadcasterID string) ([]emotes.PlatformEmote, error)
	Invalidate(broadcasterID string)
}

// ThirdPartyAPI fetches the third-party emote layers.
type ThirdPartyAPI interface {
	GlobalEmotes(ctx context.Context) ([]emotes.ThirdPartyEmote, error)
	ChannelEmotes(ctx context.Context, twitchUserID string) ([]emotes.ThirdPartyEmote, error)
}

// Transport is one live chat connection. Connect and Disconnect are
// idempotent.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
}

// TransportFactory builds a transport joined to a channel, delivering
// messages to the handler.
type TransportFactory func(channel string, handler func(core.ChatMessage)) Transport

// Options configure a session.
type Options struct {
	Channel      string
	WindowSize   int
	Helix        HelixAPI
	ThirdParty   ThirdPartyAPI
	NewTransport TransportFactory
	Registry     prometheus.Registerer

	// OnRow is called for every rendered row after it enters the window.
	// It must not block; the HTTP layer fans out from here.
	OnRow func(core.RenderedMessage)
}

// Session owns the per-channel pipeline: catalog fetches, the emote index,
// the renderer, the bounded window, and the transport lifecycle. A channel
// switch bumps the epoch so fetches started for the old channel can never
// clobber the new one's catalogs.
type Session struct {
	opts    Options
	window  *Window
	custom  *badges.CustomBadges
	render  *Renderer
	metrics *Metrics

	mu            sync.Mutex
	channel       string
	broadcasterID string
	epoch         uint64
	transport     Transport
	connected     bool
}

// Status is a point-in-time session snapshot for the admin surface.
type Status struct {
	Channel       string `json:"channel"`
	BroadcasterID string `json:"broadcaster_id,omitempty"`
	Connected     bool   `json:"connected"`
	WindowLen     int    `json:"window_len"`
	WindowCap     int    `json:"window_cap"`
	Epoch         uint64 `json:"epoch"`
}

func NewSession(opts Options) *Session {
	metrics := newMetrics(opts.Registry)
	custom := &badges.CustomBadges{}
	return &Session{
		opts:    opts,
		window:  NewWindow(opts.WindowSize),
		custom:  custom,
		render:  newRenderer(custom, metrics),
		metrics: metrics,
	}
}

// CustomBadges exposes the session's custom badge store for admin additions.
func (s *Session) CustomBadges() *badges.CustomBadges { return s.custom }

// Start joins the configured channel.
func (s *Session) Start(ctx context.Context) error {
	return s.SwitchChannel(ctx, s.opts.Channel)
}

// SwitchChannel tears down the current transport, refetches all catalogs for
// the new channel, and reconnects. The old channel's window is cleared.
// Fetches still in flight for a previous channel are discarded on completion.
func (s *Session) SwitchChannel(ctx context.Context, channel string) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	old := s.transport
	s.transport = nil
	s.connected = false
	s.channel = channel
	s.broadcasterID = ""
	s.mu.Unlock()

	s.metrics.incChannelSwitch()
	if old != nil {
		old.Disconnect()
	}
	s.window.Clear()

	broadcasterID, ix, catalog := s.fetchCatalogs(ctx, channel)

	// The epoch check and the swap must be one critical section: a stale
	// fetch that passed the check but swapped after unlocking could still
	// overwrite a newer channel's catalogs.
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.metrics.incStaleFetch()
		log.Printf("render: discarding stale catalogs for %s", channel)
		return nil
	}
	s.broadcasterID = broadcasterID
	s.render.swapCatalogs(ix, catalog)
	s.mu.Unlock()

	if s.opts.NewTransport == nil {
		return nil
	}
	transport := s.opts.NewTransport(channel, s.Handle)
	if err := transport.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		transport.Disconnect()
		return nil
	}
	s.transport = transport
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Reload drops the cached catalogs and refetches them for the current
// channel without touching the transport. Triggered by the reload chat
// command and the admin surface.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	channel := s.channel
	broadcasterID := s.broadcasterID
	s.mu.Unlock()

	s.metrics.incReload()
	if s.opts.Helix != nil {
		s.opts.Helix.Invalidate(broadcasterID)
	}

	id, ix, catalog := s.fetchCatalogs(ctx, channel)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.metrics.incStaleFetch()
		return nil
	}
	s.broadcasterID = id
	s.render.swapCatalogs(ix, catalog)
	s.mu.Unlock()

	log.Printf("render: catalogs reloaded for #%s", channel)
	return nil
}

// fetchCatalogs resolves the broadcaster id and runs the four emote fetches
// plus the badge catalog concurrently. Every failure degrades to an empty
// list so one upstream outage never blanks the others.
func (s *Session) fetchCatalogs(ctx context.Context, channel string) (string, *emotes.Index, badges.Catalog) {
	var broadcasterID string
	if s.opts.Helix != nil {
		id, err := s.opts.Helix.UserID(ctx, channel)
		if err != nil {
			log.Printf("render: resolve user id for %s: %v", channel, err)
			s.metrics.incCatalogFailure("user_id")
		} else {
			broadcasterID = id
		}
	}

	var (
		wg              sync.WaitGroup
		platformGlobal  []emotes.PlatformEmote
		platformChannel []emotes.PlatformEmote
		thirdGlobal     []emotes.ThirdPartyEmote
		thirdChannel    []emotes.ThirdPartyEmote
		catalog         = badges.Catalog{}
	)

	if s.opts.Helix != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := s.opts.Helix.GlobalEmotes(ctx)
			if err != nil {
				log.Printf("render: fetch global emotes: %v", err)
				s.metrics.incCatalogFailure("platform_global")
				return
			}
			platformGlobal = list
		}()

		if broadcasterID != "" {
			wg.Add(2)
			go func() {
				defer wg.Done()
				list, err := s.opts.Helix.ChannelEmotes(ctx, broadcasterID)
				if err != nil {
					log.Printf("render: fetch channel emotes: %v", err)
					s.metrics.incCatalogFailure("platform_channel")
					return
				}
				platformChannel = list
			}()
			go func() {
				defer wg.Done()
				c, err := s.opts.Helix.BadgeCatalog(ctx, broadcasterID)
				if err != nil {
					log.Printf("render: fetch badge catalog: %v", err)
					s.metrics.incCatalogFailure("badges")
					return
				}
				catalog = c
			}()
		}
	}

	if s.opts.ThirdParty != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := s.opts.ThirdParty.GlobalEmotes(ctx)
			if err != nil {
				log.Printf("render: fetch third-party global emotes: %v", err)
				s.metrics.incCatalogFailure("third_party_global")
				return
			}
			thirdGlobal = list
		}()

		if broadcasterID != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				list, err := s.opts.ThirdParty.ChannelEmotes(ctx, broadcasterID)
				if err != nil {
					log.Printf("render: fetch third-party channel emotes: %v", err)
					s.metrics.incCatalogFailure("third_party_channel")
					return
				}
				thirdChannel = list
			}()
		}
	}

	wg.Wait()

	ix := emotes.BuildIndex(platformGlobal, platformChannel, thirdGlobal, thirdChannel)
	log.Printf("render: indexed %d emotes for #%s", ix.Len(), channel)
	return broadcasterID, ix, catalog
}

// Handle processes one inbound chat message: control commands are dispatched
// and consumed, everything else is rendered, pushed into the window, and
// fanned out.
func (s *Session) Handle(msg core.ChatMessage) {
	if command.Handle(msg.Text, sessionActions{s}) {
		return
	}

	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()

	trace := rendertrace.NewTrace(channel, msg.Username, snippet(msg.Text))
	row := s.render.Render(msg, trace)
	s.window.Push(row)
	s.metrics.incRendered()

	if s.opts.OnRow != nil {
		s.opts.OnRow(row)
	}
	trace.IncCounter(rendertrace.StageBroadcast)
}

// Recent returns the rendered window oldest first.
func (s *Session) Recent() []core.RenderedMessage {
	return s.window.Recent()
}

// Status reports the current session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Channel:       s.channel,
		BroadcasterID: s.broadcasterID,
		Connected:     s.connected,
		WindowLen:     s.window.Len(),
		WindowCap:     s.window.Capacity(),
		Epoch:         s.epoch,
	}
}

// Close disconnects the transport.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	transport := s.transport
	s.transport = nil
	s.connected = false
	s.mu.Unlock()
	if transport != nil {
		transport.Disconnect()
	}
}

// sessionActions adapts the session to the command dispatcher. Reloads run
// in the background so the transport read loop is never blocked on catalog
// fetches.
type sessionActions struct{ s *Session }

func (a sessionActions) Reload() {
	go func() {
		if err := a.s.Reload(context.Background()); err != nil {
			log.Printf("render: reload: %v", err)
		}
	}()
}

func snippet(text string) string {
	const max = 48
	if len(text) <= max {
		return text
	}
	return text[:max]
}
