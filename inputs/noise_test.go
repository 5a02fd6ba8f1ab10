package inputs

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoiseRGBA_DeterministicPerSeed(t *testing.T) {
	a := NoiseRGBA(64, 7)
	b := NoiseRGBA(64, 7)
	c := NoiseRGBA(64, 8)

	assert.Len(t, a, 64*64*4)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNoiseRGBA_ClampsSize(t *testing.T) {
	assert.Len(t, NoiseRGBA(0, 1), 4)
	assert.Len(t, NoiseRGBA(-3, 1), 4)
}

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadTexture_DecodesAndKeepsSize(t *testing.T) {
	path := writeTestPNG(t, 8, 4)

	tex, err := LoadTexture(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, tex.Width)
	assert.Equal(t, 4, tex.Height)
	assert.Len(t, tex.Pixels, 8*4*4)
}

func TestLoadTexture_FlipsVertically(t *testing.T) {
	path := writeTestPNG(t, 2, 2)

	tex, err := LoadTexture(path, 0)
	require.NoError(t, err)

	// Source row 0 has G=0, row 1 has G=1; after the flip the first stored
	// row must be the source's bottom row.
	assert.EqualValues(t, 1, tex.Pixels[1])
	assert.EqualValues(t, 0, tex.Pixels[2*4+1])
}

func TestLoadTexture_ResamplesDown(t *testing.T) {
	path := writeTestPNG(t, 64, 32)

	tex, err := LoadTexture(path, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, tex.Width)
	assert.Equal(t, 8, tex.Height)
}

func TestLoadTexture_MissingFile(t *testing.T) {
	_, err := LoadTexture(filepath.Join(t.TempDir(), "nope.png"), 0)
	assert.Error(t, err)
}
