package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/devionx/uidshield/internal/core/domain"
)

// DefaultMaskedDigits is how many leading identifier digits get painted over.
// The source documents disagree between four and eight; eight is the adopted
// convention and the width stays configurable.
const DefaultMaskedDigits = 8

const jpegQuality = 95

// RedactionEngine overlays an opaque block over the leading digits of each
// detection, leaving every other pixel of the document untouched.
type RedactionEngine struct {
	maskedDigits int
	fill         color.Color
}

func NewRedactionEngine(maskedDigits int) *RedactionEngine {
	if maskedDigits <= 0 || maskedDigits > domain.IdentifierDigits {
		maskedDigits = DefaultMaskedDigits
	}
	return &RedactionEngine{
		maskedDigits: maskedDigits,
		fill:         color.Black,
	}
}

func (e *RedactionEngine) MaskedDigits() int {
	return e.maskedDigits
}

// Redact returns a masked copy of the image. An empty detection list returns
// the input bytes unchanged with zero masked regions; that is a result, not
// an error.
func (e *RedactionEngine) Redact(imageBytes []byte, detections []domain.Detection) (*domain.MaskedImage, error) {
	if len(detections) == 0 {
		cfgFormat, err := sniffFormat(imageBytes)
		if err != nil {
			return nil, err
		}
		return &domain.MaskedImage{Data: imageBytes, Format: cfgFormat}, nil
	}

	src, format, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnreadableImage, "decode image", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	masked := make([]domain.Box, 0, len(detections))
	for _, det := range detections {
		rect, ok := e.maskRect(det.Region, bounds)
		if !ok {
			continue
		}
		draw.Draw(canvas, rect, image.NewUniform(e.fill), image.Point{}, draw.Src)
		masked = append(masked, domain.Box{
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
		})
	}

	data, err := encodeImage(canvas, format)
	if err != nil {
		return nil, fmt.Errorf("re-encode %s image: %w", format, err)
	}
	return &domain.MaskedImage{Data: data, Format: format, Regions: masked}, nil
}

// maskRect covers the leading digits' span: 8/12 of the region's horizontal
// extent from its leading edge, full height, clamped to image bounds. The
// trailing digits stay visible.
func (e *RedactionEngine) maskRect(region domain.Box, bounds image.Rectangle) (image.Rectangle, bool) {
	if region.Empty() {
		return image.Rectangle{}, false
	}
	maskWidth := int(math.Round(float64(region.Width) * float64(e.maskedDigits) / float64(domain.IdentifierDigits)))
	rect := image.Rect(region.X, region.Y, region.X+maskWidth, region.Y+region.Height)
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}

func sniffFormat(imageBytes []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return "", domain.WrapError(domain.ErrUnreadableImage, "decode image header", err)
	}
	return format, nil
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, nil)
	default:
		err = errors.New("unsupported output format " + format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
