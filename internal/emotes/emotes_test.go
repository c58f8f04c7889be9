package emotes

import (
	"errors"
	"testing"
)

func platformEmote(name string) PlatformEmote {
	return PlatformEmote{
		ID:   "id-" + name,
		Name: name,
		Images: PlatformImages{
			URL1x: "https://cdn/" + name + "/1x",
			URL2x: "https://cdn/" + name + "/2x",
			URL4x: "https://cdn/" + name + "/4x",
		},
		Format: []string{"static"},
		Scale:  []string{"1.0", "2.0", "3.0"},
	}
}

func thirdPartyEmote(name string, w, h int) ThirdPartyEmote {
	return ThirdPartyEmote{
		ID:   "stv-" + name,
		Name: name,
		Data: ThirdPartyData{
			Host: ThirdPartyHost{
				URL: "//cdn.7tv.app/emote/stv-" + name,
				Files: []ThirdPartyFile{
					{Name: "1x.webp", Width: w / 4, Height: h / 4, Format: "WEBP"},
					{Name: "4x.webp", Width: w, Height: h, Format: "WEBP"},
				},
			},
		},
	}
}

func TestBuildIndexLaterSourceWins(t *testing.T) {
	ix := BuildIndex(
		[]PlatformEmote{platformEmote("Kappa")},
		nil,
		[]ThirdPartyEmote{thirdPartyEmote("Kappa", 128, 128)},
		nil,
	)

	d, ok := ix.Lookup("Kappa")
	if !ok {
		t.Fatalf("Kappa missing from index")
	}
	if d.Kind != KindThirdParty {
		t.Fatalf("expected later-merged third-party descriptor, got %s", d.Kind)
	}
}

func TestBuildIndexChannelOverridesGlobal(t *testing.T) {
	global := thirdPartyEmote("peepoHey", 100, 100)
	channel := thirdPartyEmote("peepoHey", 64, 32)
	ix := BuildIndex(nil, nil, []ThirdPartyEmote{global}, []ThirdPartyEmote{channel})

	d, _ := ix.Lookup("peepoHey")
	if d.ThirdParty == nil || d.ThirdParty.Data.Host.Files[1].Width != 64 {
		t.Fatalf("channel descriptor did not replace global one")
	}
}

func TestBuildIndexEmptyInputs(t *testing.T) {
	ix := BuildIndex(nil, nil, nil, nil)
	if ix.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", ix.Len())
	}
}

func TestTokenizeBasicSplit(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa")}, nil, nil, nil)
	segs := Tokenize("hello Kappa world", ix)

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Emote != nil || segs[0].Text != "hello " {
		t.Fatalf("bad leading segment: %+v", segs[0])
	}
	if segs[1].Emote == nil || segs[1].Text != "Kappa" {
		t.Fatalf("bad emote segment: %+v", segs[1])
	}
	if segs[2].Emote != nil || segs[2].Text != " world" {
		t.Fatalf("bad trailing segment: %+v", segs[2])
	}
}

func TestTokenizeEmbeddedNameDoesNotMatch(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa")}, nil, nil, nil)
	segs := Tokenize("helloKappa", ix)
	if len(segs) != 1 || segs[0].Emote != nil || segs[0].Text != "helloKappa" {
		t.Fatalf("embedded name must stay literal, got %+v", segs)
	}
}

func TestTokenizePunctuationAdjacentMatches(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa")}, nil, nil, nil)
	segs := Tokenize("Kappa!", ix)
	if len(segs) != 2 || segs[0].Emote == nil || segs[1].Text != "!" {
		t.Fatalf("name followed by punctuation must match, got %+v", segs)
	}
}

func TestTokenizeEmptyIndexReturnsWholeMessage(t *testing.T) {
	for _, msg := range []string{"hello Kappa world", ""} {
		segs := Tokenize(msg, EmptyIndex())
		if len(segs) != 1 || segs[0].Emote != nil || segs[0].Text != msg {
			t.Fatalf("empty index must return message untouched, got %+v", segs)
		}
	}
}

func TestTokenizeAdjacentEmotesOmitEmptySpans(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa"), platformEmote("PogChamp")}, nil, nil, nil)
	segs := Tokenize("Kappa PogChamp", ix)
	if len(segs) != 3 {
		t.Fatalf("expected emote, space, emote: %+v", segs)
	}
	if segs[0].Emote == nil || segs[1].Text != " " || segs[2].Emote == nil {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestTokenizeOverlappingNamesPrefersLongest(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa"), platformEmote("KappaPride")}, nil, nil, nil)
	segs := Tokenize("KappaPride", ix)
	if len(segs) != 1 || segs[0].Emote == nil {
		t.Fatalf("expected single emote segment, got %+v", segs)
	}
	if segs[0].Text != "KappaPride" {
		t.Fatalf("longest name must win, matched %q", segs[0].Text)
	}
}

func TestTokenizeEscapesRegexMetacharacters(t *testing.T) {
	ix := BuildIndex([]PlatformEmote{platformEmote("Kappa.2")}, nil, nil, nil)

	segs := Tokenize("go Kappa.2 go", ix)
	if len(segs) != 3 || segs[1].Emote == nil || segs[1].Text != "Kappa.2" {
		t.Fatalf("metacharacter name did not match literally: %+v", segs)
	}

	// An unescaped '.' would also match "KappaX2"; the literal must not.
	segs = Tokenize("go KappaX2 go", ix)
	if len(segs) != 1 || segs[0].Emote != nil {
		t.Fatalf("metacharacter leaked into the pattern: %+v", segs)
	}
}

func TestResolveImageThirdPartyAspectRatio(t *testing.T) {
	d := FromThirdParty(thirdPartyEmote("WideBoi", 96, 32))
	img, err := ResolveImage(d)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if img.URL != "https://cdn.7tv.app/emote/stv-WideBoi/4x.webp" {
		t.Fatalf("bad url: %s", img.URL)
	}
	if img.Height != 24 || img.Width != 72 {
		t.Fatalf("expected 72x24, got %dx%d", img.Width, img.Height)
	}
}

func TestResolveImageThirdPartyFallsBackToFirstFile(t *testing.T) {
	e := thirdPartyEmote("OnlySmall", 112, 112)
	e.Data.Host.Files = []ThirdPartyFile{{Name: "1x.avif", Width: 28, Height: 28, Format: "AVIF"}}
	img, err := ResolveImage(FromThirdParty(e))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if img.URL != "https://cdn.7tv.app/emote/stv-OnlySmall/1x.avif" {
		t.Fatalf("bad url: %s", img.URL)
	}
	if img.Width != 24 || img.Height != 24 {
		t.Fatalf("expected 24x24, got %dx%d", img.Width, img.Height)
	}
}

func TestResolveImagePlatformPrefers4x(t *testing.T) {
	img, err := ResolveImage(FromPlatform(platformEmote("Kappa")))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if img.URL != "https://cdn/Kappa/4x" {
		t.Fatalf("bad url: %s", img.URL)
	}
	if img.Width != 24 || img.Height != 24 {
		t.Fatalf("expected 24x24, got %dx%d", img.Width, img.Height)
	}
}

func TestResolveImagePlatformFallsBackTo2x(t *testing.T) {
	e := platformEmote("Old")
	e.Images.URL4x = ""
	img, err := ResolveImage(FromPlatform(e))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if img.URL != "https://cdn/Old/2x" {
		t.Fatalf("bad url: %s", img.URL)
	}
}

func TestResolveImageMissingURL(t *testing.T) {
	e := platformEmote("Ghost")
	e.Images = PlatformImages{}
	if _, err := ResolveImage(FromPlatform(e)); !errors.Is(err, ErrMissingImageURL) {
		t.Fatalf("expected ErrMissingImageURL, got %v", err)
	}

	stv := thirdPartyEmote("NoFiles", 0, 0)
	stv.Data.Host.Files = nil
	if _, err := ResolveImage(FromThirdParty(stv)); !errors.Is(err, ErrMissingImageURL) {
		t.Fatalf("expected ErrMissingImageURL, got %v", err)
	}
}
