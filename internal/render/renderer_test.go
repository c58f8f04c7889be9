package render

import (
	"testing"
	"time"

	"github.com/you/eaglechat/internal/badges"
	"github.com/you/eaglechat/internal/core"
	"github.com/you/eaglechat/internal/emotes"
)

func testIndex() *emotes.Index {
	kappa := emotes.PlatformEmote{ID: "25", Name: "Kappa"}
	kappa.Images.URL4x = "https://cdn/kappa/4x"
	broken := emotes.PlatformEmote{ID: "26", Name: "Broken"} // no image urls at all
	return emotes.BuildIndex([]emotes.PlatformEmote{kappa, broken}, nil, nil, nil)
}

func testCatalog() badges.Catalog {
	return badges.Catalog{
		Global: badges.MapSets([]badges.Set{
			{SetID: "subscriber", Versions: []badges.Version{{ID: "6", ImageURL4x: "https://cdn/sub/6"}}},
			{SetID: "moderator", Versions: []badges.Version{{ID: "1", ImageURL4x: "https://cdn/mod/1"}}},
		}),
		Channel: map[string]badges.Set{},
	}
}

func newTestRenderer() *Renderer {
	r := newRenderer(&badges.CustomBadges{}, newMetrics(nil))
	r.swapCatalogs(testIndex(), testCatalog())
	return r
}

func TestRenderMixedMessage(t *testing.T) {
	r := newTestRenderer()
	row := r.Render(core.ChatMessage{
		ID:          "msg-1",
		Ts:          time.Unix(100, 0).UTC(),
		Username:    "user",
		DisplayName: "User",
		Text:        "hello Kappa world",
		Colour:      "#3A66B0",
		Badges:      map[string]string{"subscriber": "6", "moderator": "1"},
	}, nil)

	if len(row.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(row.Segments), row.Segments)
	}
	if row.Segments[0].Kind != core.SegmentText || row.Segments[0].Text != "hello " {
		t.Fatalf("segment 0: %+v", row.Segments[0])
	}
	if row.Segments[1].Kind != core.SegmentEmote || row.Segments[1].Emote == nil {
		t.Fatalf("segment 1: %+v", row.Segments[1])
	}
	if row.Segments[1].Emote.URL != "https://cdn/kappa/4x" || row.Segments[1].Emote.Name != "Kappa" {
		t.Fatalf("emote image: %+v", row.Segments[1].Emote)
	}
	if row.Segments[2].Text != " world" {
		t.Fatalf("segment 2: %+v", row.Segments[2])
	}

	// badge order follows sorted set ids for deterministic rows
	if len(row.Badges) != 2 || row.Badges[0].Set != "moderator" || row.Badges[1].Set != "subscriber" {
		t.Fatalf("badges: %+v", row.Badges)
	}
	if row.Badges[1].URL != "https://cdn/sub/6" {
		t.Fatalf("badge url: %+v", row.Badges[1])
	}
}

func TestRenderDegradesUnresolvableEmote(t *testing.T) {
	r := newTestRenderer()
	row := r.Render(core.ChatMessage{Text: "Broken", Colour: "#FFFFFF"}, nil)
	if len(row.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(row.Segments))
	}
	if row.Segments[0].Kind != core.SegmentText || row.Segments[0].Text != "Broken" {
		t.Fatalf("expected degraded text segment, got %+v", row.Segments[0])
	}
}

func TestRenderNormalizesColour(t *testing.T) {
	r := newTestRenderer()
	row := r.Render(core.ChatMessage{Text: "hi", Colour: "#000000"}, nil)
	if row.RawColour != "#000000" {
		t.Fatalf("raw colour: %q", row.RawColour)
	}
	if row.Colour == "#000000" || row.Colour == "" {
		t.Fatalf("expected lightened colour, got %q", row.Colour)
	}
}

func TestRenderKeepsRawColourOnBadFormat(t *testing.T) {
	r := newTestRenderer()
	row := r.Render(core.ChatMessage{Text: "hi", Colour: "periwinkle"}, nil)
	if row.Colour != "periwinkle" || row.RawColour != "periwinkle" {
		t.Fatalf("expected raw colour passthrough, got %+v", row)
	}
}

func TestRenderSkipsUnknownBadges(t *testing.T) {
	r := newTestRenderer()
	row := r.Render(core.ChatMessage{
		Text:   "hi",
		Colour: "#FFFFFF",
		Badges: map[string]string{"subscriber": "99", "vip": "1"},
	}, nil)
	if len(row.Badges) != 0 {
		t.Fatalf("expected unknown badges skipped, got %+v", row.Badges)
	}
}

func TestRenderAppendsCustomBadge(t *testing.T) {
	custom := &badges.CustomBadges{}
	custom.Add("prodbyeagle", "https://cdn/custom/eagle")
	r := newRenderer(custom, newMetrics(nil))
	r.swapCatalogs(testIndex(), testCatalog())

	row := r.Render(core.ChatMessage{
		Username: "prodbyeagle",
		Text:     "hi",
		Colour:   "#FFFFFF",
		Badges:   map[string]string{"subscriber": "6"},
	}, nil)
	if len(row.Badges) != 2 {
		t.Fatalf("expected catalog + custom badges, got %+v", row.Badges)
	}
	last := row.Badges[len(row.Badges)-1]
	if !last.Custom || last.URL != "https://cdn/custom/eagle" {
		t.Fatalf("expected custom badge last, got %+v", last)
	}
}

func TestRendererStartsEmpty(t *testing.T) {
	r := newRenderer(&badges.CustomBadges{}, newMetrics(nil))
	row := r.Render(core.ChatMessage{
		Text:   "hello Kappa",
		Colour: "#FFFFFF",
		Badges: map[string]string{"subscriber": "6"},
	}, nil)
	if len(row.Segments) != 1 || row.Segments[0].Kind != core.SegmentText {
		t.Fatalf("expected single text segment before first catalog swap, got %+v", row.Segments)
	}
	if len(row.Badges) != 0 {
		t.Fatalf("expected no badges before first catalog swap, got %+v", row.Badges)
	}
}
