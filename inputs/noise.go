// Package inputs produces the texture data a shader's channels sample from:
// the procedural noise fallback and decoded external images.
package inputs

import "math/rand"

// NoiseRGBA generates a size x size RGBA8 white-noise texture. The same seed
// always yields the same bytes, so a shader renders identically across runs.
func NoiseRGBA(size int, seed int64) []byte {
	if size < 1 {
		size = 1
	}
	rng := rand.New(rand.NewSource(seed))
	pixels := make([]byte, size*size*4)
	rng.Read(pixels)
	return pixels
}
