package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
)

// Format is the requested output encoding
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultQuality is the JPEG quality used when the caller does not ask for one
const DefaultQuality = 80

// ParseFormat accepts jpeg, jpg and png in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Result is one encoded screen image
type Result struct {
	Data        []byte
	Format      Format
	ContentType string
}

// Encode re-encodes img in format. Quality only applies to JPEG and is clamped to 1..100.
func Encode(img image.Image, format Format, quality int) (*Result, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &Result{
		Data:        buf.Bytes(),
		Format:      format,
		ContentType: format.ContentType(),
	}, nil
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}

// flatten drops the alpha channel so JPEG output is always three-channel.
// Color values are kept as stored; transparency is not composited.
func flatten(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.YCbCr:
		return src
	case *image.RGBA:
		if src.Opaque() {
			return src
		}
	case *image.NRGBA:
		if src.Stride == 4*src.Rect.Dx() {
			out := image.NewRGBA(src.Rect)
			copy(out.Pix, src.Pix)
			for i := 3; i < len(out.Pix); i += 4 {
				out.Pix[i] = 0xff
			}
			return out
		}
	}

	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}
