package core

import "time"

// ChatMessage is the normalized transport event: one inbound chat line with
// the tags the overlay cares about, immutable once created.
type ChatMessage struct {
	ID          string
	Ts          time.Time
	Username    string
	DisplayName string // falls back to Username at the transport
	Text        string
	Colour      string            // raw, pre-normalization (e.g. "#FF4500")
	Badges      map[string]string // badge set id -> version
}

// RenderedMessage is one display-ready overlay row.
type RenderedMessage struct {
	ID          string      `json:"id"`
	Ts          time.Time   `json:"ts"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Colour      string      `json:"colour"`               // normalized hex
	RawColour   string      `json:"raw_colour,omitempty"` // as delivered by the transport
	Badges      []BadgeIcon `json:"badges,omitempty"`
	Segments    []Segment   `json:"segments"`
}

// SegmentKind discriminates the two segment variants.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentEmote SegmentKind = "emote"
)

// Segment is one run of a rendered message: either literal text or a
// resolved inline emote image.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Emote *EmoteImage `json:"emote,omitempty"`
}

// EmoteImage is a resolved emote: a concrete image resource plus render
// dimensions with preserved aspect ratio.
type EmoteImage struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BadgeIcon is one resolved badge image for a row. Custom badges are layered
// after catalog badges and carry no set/version.
type BadgeIcon struct {
	Set     string `json:"set,omitempty"`
	Version string `json:"version,omitempty"`
	URL     string `json:"url"`
	Custom  bool   `json:"custom,omitempty"`
}
