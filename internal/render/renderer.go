package render

import (
	"log"
	"sort"
	"sync"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/colorize"
	"github.com/you/eaglechat/internal/core"
	"github.com/you/eaglechat/internal/emotes"
	"github.com/you/eaglechat/internal/rendertrace"
)

// Renderer turns normalized chat messages into display-ready rows using the
// current emote index and badge catalog. The index and catalog are swapped
// atomically when the session finishes a fetch cycle; until the first swap
// the renderer runs with empty catalogs and every message degrades to plain
// text with catalog badges absent.
type Renderer struct {
	mu      sync.RWMutex
	index   *emotes.Index
	catalog badges.Catalog

	custom  *badges.CustomBadges
	metrics *Metrics
}

func newRenderer(custom *badges.CustomBadges, metrics *Metrics) *Renderer {
	return &Renderer{
		index:   emotes.EmptyIndex(),
		catalog: badges.Catalog{},
		custom:  custom,
		metrics: metrics,
	}
}

func (r *Renderer) swapCatalogs(ix *emotes.Index, catalog badges.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ix != nil {
		r.index = ix
	}
	r.catalog = catalog
}

// Render builds the overlay row for one chat message. It never fails: a
// colour that cannot be normalized keeps its raw value, an emote without a
// usable image renders as text, and unknown badge versions are skipped.
func (r *Renderer) Render(msg core.ChatMessage, trace *rendertrace.MessageTrace) core.RenderedMessage {
	r.mu.RLock()
	ix := r.index
	catalog := r.catalog
	r.mu.RUnlock()

	row := core.RenderedMessage{
		ID:          msg.ID,
		Ts:          msg.Ts,
		Username:    msg.Username,
		DisplayName: msg.DisplayName,
		RawColour:   msg.Colour,
		Badges:      r.resolveBadges(catalog, msg),
		Segments:    r.resolveSegments(ix, msg.Text, trace),
	}
	if trace != nil {
		trace.IncCounter(rendertrace.StageBadges)
	}

	colour, err := colorize.Normalize(msg.Colour)
	if err != nil {
		// transport contract violation; keep the row visible with the raw value
		log.Printf("render: normalize colour %q for %s: %v", msg.Colour, msg.Username, err)
		r.metrics.incColourFallback()
		colour = msg.Colour
	}
	row.Colour = colour
	if trace != nil {
		trace.IncCounter(rendertrace.StageColoured)
	}

	return row
}

// resolveBadges maps the message's badge tags through the catalog in sorted
// set order so identical inputs always yield identical rows, then layers the
// user's custom badges on the end.
func (r *Renderer) resolveBadges(catalog badges.Catalog, msg core.ChatMessage) []core.BadgeIcon {
	var out []core.BadgeIcon

	sets := make([]string, 0, len(msg.Badges))
	for set := range msg.Badges {
		sets = append(sets, set)
	}
	sort.Strings(sets)

	for _, set := range sets {
		version := msg.Badges[set]
		url, ok := catalog.Resolve(set, version)
		if !ok {
			continue
		}
		out = append(out, core.BadgeIcon{Set: set, Version: version, URL: url})
	}

	if r.custom != nil {
		if url, ok := r.custom.Get(msg.Username); ok {
			out = append(out, core.BadgeIcon{URL: url, Custom: true})
		}
	}
	return out
}

func (r *Renderer) resolveSegments(ix *emotes.Index, text string, trace *rendertrace.MessageTrace) []core.Segment {
	tokens := emotes.Tokenize(text, ix)
	if trace != nil {
		trace.IncCounter(rendertrace.StageTokenized)
	}

	out := make([]core.Segment, 0, len(tokens))
	matched := 0
	for _, tok := range tokens {
		if tok.Emote == nil {
			out = append(out, core.Segment{Kind: core.SegmentText, Text: tok.Text})
			continue
		}

		img, err := emotes.ResolveImage(*tok.Emote)
		if err != nil {
			log.Printf("render: resolve emote %q: %v", tok.Text, err)
			r.metrics.incDegraded()
			if trace != nil {
				trace.IncCounter(rendertrace.StageDegraded("emote_image"))
			}
			out = append(out, core.Segment{Kind: core.SegmentText, Text: tok.Text})
			continue
		}

		matched++
		out = append(out, core.Segment{
			Kind: core.SegmentEmote,
			Emote: &core.EmoteImage{
				Name:   tok.Text,
				URL:    img.URL,
				Width:  img.Width,
				Height: img.Height,
			},
		})
	}

	r.metrics.incEmoteSegments(matched)
	if trace != nil {
		trace.IncCounter(rendertrace.StageResolved)
	}
	return out
}
