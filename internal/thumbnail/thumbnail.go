// Package thumbnail produces preview images for ingested items.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const DefaultSize = 256

// Generator renders a preview of the file at path fitting in a size x size
// square. Implementations may be slow and should honour ctx.
type Generator interface {
	Generate(ctx context.Context, path string, size int) ([]byte, error)
}

// Result is the outcome of an asynchronous generation.
type Result struct {
	Data []byte
	Err  error
}

// Request runs g on its own goroutine. The channel receives exactly one
// result and is never closed without one, so callers can select on it
// together with a deadline.
func Request(ctx context.Context, g Generator, path string, size int) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		data, err := g.Generate(ctx, path, size)
		out <- Result{Data: data, Err: err}
	}()
	return out
}

// ImageGenerator decodes raster images and scales them down to JPEG previews.
type ImageGenerator struct {
	Quality int
}

func (g ImageGenerator) Generate(ctx context.Context, path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, common.Wrap(common.ErrUnsupportedType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encode(img, size, g.Quality)
}

// Scale fits src into a size x size box, keeping its aspect ratio. Images
// already small enough are returned unchanged.
func Scale(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if size <= 0 || (w <= size && h <= size) {
		return src
	}
	if w >= h {
		h = max(1, h*size/w)
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Encode scales img and encodes it as a JPEG preview.
func Encode(img image.Image, size, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Scale(img, size), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
