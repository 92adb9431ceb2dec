// Package imaging turns compressed image bytes into a normalized model input
// tensor.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
)

const (
	Channels = 3

	// DefaultMaxPixels caps decoded images at roughly 40 megapixels.
	DefaultMaxPixels = 40_000_000
)

var (
	ErrEmptyImage        = errors.New("empty image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidSize       = errors.New("target size must be positive")
	ErrTooManyPixels     = errors.New("image dimensions exceed pixel limit")
)

// Decode sniffs the content type of data and decodes it into a
// non-premultiplied RGBA grid anchored at the origin. The header is checked
// against maxPixels before any pixel buffer is allocated; 0 disables the check.
func Decode(data []byte, maxPixels int) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s header: %w", mime.String(), err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", mime.String(), err)
	}

	return toNRGBA(img), format, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Preprocess decodes data, resizes it to targetSize x targetSize with bilinear
// interpolation and scales every channel into [0,1]. The result has shape
// (1, targetSize, targetSize, 3) in NHWC order and is fully determined by its
// inputs. Images larger than maxPixels are rejected undecoded.
func Preprocess(data []byte, targetSize int, maxPixels int) (*entity.Tensor, error) {
	if targetSize <= 0 {
		return nil, ErrInvalidSize
	}

	src, _, err := Decode(data, maxPixels)
	if err != nil {
		return nil, err
	}

	resized := resize.Resize(uint(targetSize), uint(targetSize), src, resize.Bilinear)

	return &entity.Tensor{
		Shape: []int64{1, int64(targetSize), int64(targetSize), Channels},
		Data:  normalize(resized, targetSize),
	}, nil
}

func normalize(img image.Image, size int) []float32 {
	data := make([]float32, size*size*Channels)
	bounds := img.Bounds()

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b := rgbAt(img, bounds.Min.X+x, bounds.Min.Y+y)
			data[i] = float32(r) / 255.0
			data[i+1] = float32(g) / 255.0
			data[i+2] = float32(b) / 255.0
			i += Channels
		}
	}

	return data
}

// rgbAt reads straight (non-premultiplied) 8-bit color, dropping alpha.
func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	switch m := img.(type) {
	case *image.NRGBA:
		off := m.PixOffset(x, y)
		return m.Pix[off], m.Pix[off+1], m.Pix[off+2]
	case *image.RGBA:
		off := m.PixOffset(x, y)
		if m.Pix[off+3] == 0xff {
			return m.Pix[off], m.Pix[off+1], m.Pix[off+2]
		}
	}

	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}
