package inputs

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Texture is decoded, GPU-ready RGBA8 pixel data.
type Texture struct {
	Width  int
	Height int
	Pixels []byte
}

// LoadTexture decodes an image file (PNG, JPEG, BMP, TIFF) for use as an
// external channel input. Images larger than maxDim on either side are
// resampled down, preserving aspect ratio; maxDim <= 0 disables resampling.
func LoadTexture(path string, maxDim int) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inputs: open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("inputs: decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	// Flip vertically while converting: image origin is top-left, GL samples
	// bottom-left.
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)

	flipped := make([]byte, len(rgba.Pix))
	stride := w * 4
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+stride]
		copy(flipped[(h-1-y)*stride:], src)
	}

	return &Texture{Width: w, Height: h, Pixels: flipped}, nil
}
