// Package shaderpaper renders Shadertoy-style multipass shaders onto a
// desktop surface, trading resolution for frame-time budget automatically.
package shaderpaper

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/shaderpaper/shaderpaper/graphics"
	"github.com/shaderpaper/shaderpaper/inputs"
	"github.com/shaderpaper/shaderpaper/options"
	"github.com/shaderpaper/shaderpaper/renderer"
	"github.com/shaderpaper/shaderpaper/scale"
)

// Telemetry is a queryable snapshot of the engine's state for overlays and
// status output.
type Telemetry struct {
	FPS          float64
	CurrentScale float64
	TargetScale  float64
	Ready        bool
	Locked       bool
	Emergency    bool
	Mode         string
	Frame        int
}

// Engine ties the window, the render graph and the resolution controller into
// one frame loop. Strictly single-threaded: every method must be called from
// the thread that created the engine, which owns the GL context.
type Engine struct {
	opts options.Options
	log  Logger

	window  *glfw.Window
	backend renderer.Backend

	shader *renderer.MultipassShader
	ctrl   *scale.Controller

	externalTex uint32

	start     time.Time
	lastFrame time.Time
	lastStats time.Time
	mouse     mgl32.Vec4
}

// New creates the window, loads GL and prepares an engine with no shader
// loaded. The calling goroutine must be locked to its OS thread.
func New(opts options.Options, log Logger) (*Engine, error) {
	if log == nil {
		log = NewNopLogger()
	}

	window, err := graphics.NewWindow(graphics.WindowOptions{
		Width:     opts.Width,
		Height:    opts.Height,
		Title:     opts.Title,
		Wallpaper: opts.Wallpaper,
		VSync:     opts.VSync,
	})
	if err != nil {
		return nil, err
	}

	backend := renderer.GLBackend{}
	if err := backend.Init(); err != nil {
		window.Destroy()
		graphics.Terminate()
		return nil, fmt.Errorf("gl init: %w", err)
	}

	e := &Engine{
		opts:    opts,
		log:     log,
		window:  window,
		backend: backend,
		ctrl:    scale.New(opts.Controller),
		start:   time.Now(),
	}

	window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		_, h := w.GetFramebufferSize()
		e.mouse[0] = float32(x)
		e.mouse[1] = float32(float64(h) - y) // GL origin is bottom-left
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, b glfw.MouseButton, a glfw.Action, mods glfw.ModifierKey) {
		if b != glfw.MouseButtonLeft {
			return
		}
		if a == glfw.Press {
			e.mouse[2] = e.mouse[0]
			e.mouse[3] = e.mouse[1]
		} else if a == glfw.Release {
			e.mouse[2] = 0
			e.mouse[3] = 0
		}
	})

	return e, nil
}

// Load replaces the active shader with one parsed from raw text. On any
// failure the previous shader stays active, so the daemon can keep rendering
// while reporting the error.
func (e *Engine) Load(src string) error {
	ms, err := renderer.NewMultipassShader(e.backend, e.log, src,
		e.opts.NoiseSize, e.opts.NoiseSeed)
	if err != nil {
		return err
	}

	w, h := e.window.GetFramebufferSize()
	if err := ms.InitGL(w, h); err != nil {
		ms.Destroy()
		return err
	}
	if !ms.IsReady() {
		report := ms.CompileReport()
		ms.Destroy()
		return fmt.Errorf("shader compile failed:\n%s", report)
	}

	if e.shader != nil {
		e.shader.Destroy()
	}
	e.shader = ms
	e.ctrl.Reset()
	e.start = time.Now()
	e.lastFrame = time.Time{}
	e.log.Infof("shader %s loaded: %d passes, %dx%d", ms.ID, len(ms.Passes()), w, h)
	return nil
}

// LoadExternalTexture decodes an image file and binds it as the shader's
// external channel input.
func (e *Engine) LoadExternalTexture(path string) error {
	if e.shader == nil {
		return fmt.Errorf("no shader loaded")
	}
	tex, err := inputs.LoadTexture(path, 0)
	if err != nil {
		return err
	}
	id, err := e.backend.CreateTexture(tex.Width, tex.Height)
	if err != nil {
		return err
	}
	e.backend.UploadTexture(id, tex.Width, tex.Height, tex.Pixels)
	if e.externalTex != 0 {
		e.backend.DeleteTexture(e.externalTex)
	}
	e.externalTex = id
	e.shader.SetExternalTexture(id, tex.Width, tex.Height)
	return nil
}

// Frame runs one iteration of the loop: feed the controller the previous
// frame's wall-clock duration, resize if the applied scale moved, render all
// passes, present.
func (e *Engine) Frame() error {
	if e.shader == nil {
		return fmt.Errorf("no shader loaded")
	}

	now := time.Now()
	var dt time.Duration
	if !e.lastFrame.IsZero() {
		dt = now.Sub(e.lastFrame)
	}
	e.lastFrame = now

	applied := e.ctrl.Update(dt)

	w, h := e.window.GetFramebufferSize()
	if math.Abs(applied-e.shader.Scale()) > e.opts.ScaleEpsilon ||
		w != e.shader.OutputWidth() || h != e.shader.OutputHeight() {
		if _, err := e.shader.Resize(applied, w, h); err != nil {
			return err
		}
	}

	t := float32(now.Sub(e.start).Seconds())
	if err := e.shader.RenderFrame(t, float32(dt.Seconds()), e.mouse); err != nil {
		return err
	}

	e.window.SwapBuffers()
	glfw.PollEvents()

	if e.log.DebugEnabled() && now.Sub(e.lastStats) > 5*time.Second {
		e.lastStats = now
		tm := e.Telemetry()
		e.log.Debugf("fps=%.1f scale=%.2f->%.2f mode=%s\n%s",
			tm.FPS, tm.CurrentScale, tm.TargetScale, tm.Mode,
			e.shader.Profiler().StatsString())
	}
	return nil
}

// Run drives Frame until the window closes.
func (e *Engine) Run() error {
	for !e.window.ShouldClose() {
		if err := e.Frame(); err != nil {
			return err
		}
	}
	return nil
}

// Telemetry snapshots the engine state; callable at any time.
func (e *Engine) Telemetry() Telemetry {
	tm := Telemetry{
		FPS:          e.ctrl.FPS(),
		CurrentScale: e.ctrl.AppliedScale(),
		TargetScale:  e.ctrl.TargetScale(),
		Locked:       e.ctrl.Locked(),
		Emergency:    e.ctrl.Emergency(),
		Mode:         e.ctrl.Mode().String(),
	}
	if e.shader != nil {
		tm.Ready = e.shader.IsReady()
		tm.Frame = e.shader.Frame()
	}
	return tm
}

// Close releases all GL resources, the window and GLFW.
func (e *Engine) Close() {
	if e.shader != nil {
		e.shader.Destroy()
		e.shader = nil
	}
	if e.externalTex != 0 {
		e.backend.DeleteTexture(e.externalTex)
		e.externalTex = 0
	}
	if e.window != nil {
		e.window.Destroy()
		e.window = nil
		graphics.Terminate()
	}
}
