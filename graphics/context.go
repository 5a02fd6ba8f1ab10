// Package graphics owns window and GL context creation. Everything else in
// the engine only assumes "a current 4.1 core context on this thread".
package graphics

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowOptions configures the output surface.
type WindowOptions struct {
	Width  int
	Height int
	Title  string
	// Wallpaper asks for an undecorated, unfocused window meant to sit
	// behind normal windows. Actual layering below the desktop is the
	// compositor integration's job, not handled here.
	Wallpaper bool
	VSync     bool
}

// NewWindow initializes GLFW, creates the window and makes its GL context
// current on the calling thread. The caller must have locked the OS thread.
func NewWindow(o WindowOptions) (*glfw.Window, error) {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Title == "" {
		o.Title = "shaderpaper"
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("graphics: glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if o.Wallpaper {
		glfw.WindowHint(glfw.Decorated, glfw.False)
		glfw.WindowHint(glfw.Focused, glfw.False)
		glfw.WindowHint(glfw.FocusOnShow, glfw.False)
		glfw.WindowHint(glfw.Maximized, glfw.True)
	}

	window, err := glfw.CreateWindow(o.Width, o.Height, o.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("graphics: create window: %w", err)
	}

	window.MakeContextCurrent()
	if o.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	return window, nil
}

// Terminate tears down GLFW. Call once, after all windows are destroyed.
func Terminate() { glfw.Terminate() }
