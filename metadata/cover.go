package metadata

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxCoverSize is the largest edge in pixels an embedded cover keeps.
const MaxCoverSize = 1400

const coverQuality = 90

// DetectImageFormat returns jpeg, png, gif or webp from the magic bytes, or "" when unknown.
func DetectImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF")):
		return "gif"
	case len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "webp"
	default:
		return ""
	}
}

// NormalizeCover converts cover art to a JPEG no larger than MaxCoverSize.
// Small JPEGs are returned unchanged. Transparent areas become white.
// When the image cannot be processed the original bytes and declared extension are returned.
func NormalizeCover(data []byte, declared string) ([]byte, string) {
	if len(data) == 0 {
		return data, declared
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Debugf("cover: cannot decode %s image (%s), using it as is", declared, err)
		return data, declared
	}

	largest := max(config.Width, config.Height)
	if format == "jpeg" && largest <= MaxCoverSize {
		return data, "jpg"
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debugf("cover: cannot decode %s image (%s), using it as is", format, err)
		return data, declared
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if largest > MaxCoverSize {
		width = width * MaxCoverSize / largest
		height = height * MaxCoverSize / largest
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: coverQuality}); err != nil {
		return data, declared
	}

	log.Debugf("cover: normalized %s %dx%d to jpeg %dx%d", format, config.Width, config.Height, width, height)
	return out.Bytes(), "jpg"
}

// Normalize returns cover with its image normalized.
func Normalize(cover audiobook.Cover) audiobook.Cover {
	cover.Image, cover.Ext = NormalizeCover(cover.Image, cover.Ext)
	return cover
}

// NewCover wraps downloaded image data, deriving the extension from its content.
func NewCover(data []byte, fallback string) audiobook.Cover {
	ext := DetectImageFormat(data)
	switch ext {
	case "":
		ext = fallback
	case "jpeg":
		ext = "jpg"
	}
	return audiobook.Cover{Image: data, Ext: ext}
}
