// Package options collects the engine's runtime settings in one struct so the
// daemon has a single thing to bind flags to.
package options

import "github.com/shaderpaper/shaderpaper/scale"

// Options configures a shaderpaper engine. Zero values are not usable; start
// from Default() and override fields as needed.
type Options struct {
	// Output surface.
	Width  int
	Height int
	Title  string
	// Wallpaper requests an undecorated, unfocusable window meant to sit
	// behind everything else.
	Wallpaper bool
	VSync     bool

	// NoiseSize is the side length of the procedural noise texture bound to
	// unclassified channels.
	NoiseSize int
	// NoiseSeed makes the noise texture reproducible across runs.
	NoiseSeed int64

	// Controller holds every adaptive-resolution tunable.
	Controller scale.Config

	// ScaleEpsilon is the smallest applied-scale change that triggers a
	// buffer reallocation.
	ScaleEpsilon float64

	Debug bool
}

// Default returns the settings the daemon ships with: a 1080p vsynced surface
// and the default 60 FPS controller.
func Default() Options {
	return Options{
		Width:  1920,
		Height: 1080,
		Title:  "shaderpaper",
		VSync:  true,

		NoiseSize: 256,
		NoiseSeed: 1,

		Controller: scale.DefaultConfig(),

		ScaleEpsilon: 0.01,
	}
}
