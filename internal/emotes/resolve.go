package emotes

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingImageURL means a descriptor carries no usable image resource.
// Callers degrade the segment to plain text; the error never reaches users.
var ErrMissingImageURL = errors.New("emotes: descriptor has no image url")

// TargetHeight is the normalized render height in CSS pixels. Third-party
// emote widths are scaled against it to preserve the source aspect ratio.
const TargetHeight = 24

// Image is a resolved emote image resource.
type Image struct {
	URL    string
	Width  int
	Height int
}

// ResolveImage determines the image URL and render dimensions for a matched
// descriptor. Platform emotes prefer the 4x image and fall back to 2x then
// 1x; they carry no pixel metadata, so they render square at TargetHeight.
// Third-party emotes prefer the file variant whose name carries a "4x"
// marker, falling back to the first file, and keep that file's aspect ratio.
func ResolveImage(d Descriptor) (Image, error) {
	switch d.Kind {
	case KindThirdParty:
		return resolveThirdParty(d)
	case KindPlatform:
		return resolvePlatform(d)
	default:
		return Image{}, errors.Wrapf(ErrMissingImageURL, "unknown descriptor kind %q for %q", d.Kind, d.Name)
	}
}

func resolveThirdParty(d Descriptor) (Image, error) {
	if d.ThirdParty == nil {
		return Image{}, errors.Wrapf(ErrMissingImageURL, "third-party descriptor %q has no payload", d.Name)
	}
	host := d.ThirdParty.Data.Host
	if host.URL == "" || len(host.Files) == 0 {
		return Image{}, errors.Wrapf(ErrMissingImageURL, "third-party emote %q has no files", d.Name)
	}

	file := host.Files[0]
	for _, f := range host.Files {
		if strings.Contains(f.Name, "4x") {
			file = f
			break
		}
	}
	if file.Name == "" {
		return Image{}, errors.Wrapf(ErrMissingImageURL, "third-party emote %q file has no name", d.Name)
	}

	img := Image{
		URL:    "https:" + host.URL + "/" + file.Name,
		Width:  TargetHeight,
		Height: TargetHeight,
	}
	if file.Width > 0 && file.Height > 0 {
		ratio := float64(file.Width) / float64(file.Height)
		img.Width = int(math.Round(TargetHeight * ratio))
	}
	return img, nil
}

func resolvePlatform(d Descriptor) (Image, error) {
	if d.Platform == nil {
		return Image{}, errors.Wrapf(ErrMissingImageURL, "platform descriptor %q has no payload", d.Name)
	}
	url := d.Platform.Images.URL4x
	if url == "" {
		url = d.Platform.Images.URL2x
	}
	if url == "" {
		url = d.Platform.Images.URL1x
	}
	if url == "" {
		return Image{}, errors.Wrapf(ErrMissingImageURL, "platform emote %q has empty image urls", d.Name)
	}
	return Image{URL: url, Width: TargetHeight, Height: TargetHeight}, nil
}
