// Package emotes merges the platform and third-party emote namespaces into
// one name-keyed index, tokenizes chat text against it, and resolves matched
// names to concrete image resources.
package emotes

// Kind tags the two descriptor variants. The tag is set once when a
// descriptor enters the index, so consumers dispatch on it instead of
// probing the payload shape.
type Kind string

const (
	KindPlatform   Kind = "platform"
	KindThirdParty Kind = "third_party"
)

// Descriptor is the tagged union over the two emote variants. Exactly one of
// Platform/ThirdParty is non-nil, matching Kind.
type Descriptor struct {
	Kind       Kind
	Name       string
	Platform   *PlatformEmote
	ThirdParty *ThirdPartyEmote
}

// PlatformEmote is a Twitch Helix emote entry (global or channel scoped).
type PlatformEmote struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images PlatformImages `json:"images"`
	Format []string       `json:"format"`
	Scale  []string       `json:"scale"`
}

type PlatformImages struct {
	URL1x string `json:"url_1x"`
	URL2x string `json:"url_2x"`
	URL4x string `json:"url_4x"`
}

// ThirdPartyEmote is a 7TV emote entry. Image variants live under
// Data.Host.Files with per-file pixel dimensions.
type ThirdPartyEmote struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data ThirdPartyData `json:"data"`
}

type ThirdPartyData struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Animated bool           `json:"animated"`
	Host     ThirdPartyHost `json:"host"`
}

type ThirdPartyHost struct {
	URL   string           `json:"url"` // scheme-relative, e.g. "//cdn.7tv.app/emote/<id>"
	Files []ThirdPartyFile `json:"files"`
}

type ThirdPartyFile struct {
	Name       string `json:"name"`
	StaticName string `json:"static_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
}

// FromPlatform wraps a platform emote in a tagged descriptor.
func FromPlatform(e PlatformEmote) Descriptor {
	p := e
	return Descriptor{Kind: KindPlatform, Name: e.Name, Platform: &p}
}

// FromThirdParty wraps a third-party emote in a tagged descriptor.
func FromThirdParty(e ThirdPartyEmote) Descriptor {
	t := e
	return Descriptor{Kind: KindThirdParty, Name: e.Name, ThirdParty: &t}
}
