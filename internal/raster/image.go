// Package raster holds decoded tile images together with their metadata.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Image is a decoded raster with a key-value annotation store.
// Pixels are not modified after construction; annotations may be set from
// any goroutine.
type Image struct {
	image.Image

	mu   sync.RWMutex
	meta map[string]any
}

func New(img image.Image) *Image {
	return &Image{Image: img}
}

func (i *Image) Width() int {
	return i.Bounds().Dx()
}

func (i *Image) Height() int {
	return i.Bounds().Dy()
}

func (i *Image) SetValue(key string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.meta == nil {
		i.meta = make(map[string]any)
	}
	i.meta[key] = value
}

func (i *Image) Value(key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	v, ok := i.meta[key]
	return v, ok
}

// Decode decodes PNG, JPEG or WebP bytes.
func Decode(data []byte) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return New(img), nil
}

func (i *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.Image); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Gray16 returns the image as 16 bit grayscale, converting when needed.
func (i *Image) Gray16() *image.Gray16 {
	if g, ok := i.Image.(*image.Gray16); ok {
		return g
	}
	b := i.Bounds()
	g := image.NewGray16(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, i.At(x, y))
		}
	}
	return g
}
