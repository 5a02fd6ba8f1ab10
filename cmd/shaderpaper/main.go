package main

import (
	_ "embed"
	"flag"
	"fmt"
	"os"
	"runtime"

	charm "github.com/charmbracelet/log"

	"github.com/shaderpaper/shaderpaper"
	"github.com/shaderpaper/shaderpaper/options"
)

//go:embed default.glsl
var defaultShader string

func init() {
	// The GL context and everything touching it stay on this thread.
	runtime.LockOSThread()
}

// charmLogger adapts charmbracelet/log to the engine's Logger interface.
type charmLogger struct {
	l *charm.Logger
}

func (c *charmLogger) DebugEnabled() bool { return c.l.GetLevel() <= charm.DebugLevel }
func (c *charmLogger) SetDebug(enabled bool) {
	if enabled {
		c.l.SetLevel(charm.DebugLevel)
	} else {
		c.l.SetLevel(charm.InfoLevel)
	}
}
func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c *charmLogger) Warnf(format string, args ...any)  { c.l.Warnf(format, args...) }
func (c *charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }

func main() {
	var (
		shaderPath  = flag.String("shader", "", "path to a Shadertoy-style GLSL file (empty: built-in demo)")
		texturePath = flag.String("texture", "", "optional image bound to external channels")
		width       = flag.Int("width", 1920, "output width")
		height      = flag.Int("height", 1080, "output height")
		fps         = flag.Float64("fps", 60, "target frame rate")
		minScale    = flag.Float64("min-scale", 0.25, "minimum resolution scale")
		maxScale    = flag.Float64("max-scale", 1.0, "maximum resolution scale")
		wallpaper   = flag.Bool("wallpaper", false, "undecorated background window")
		debug       = flag.Bool("debug", false, "debug logging and per-pass timings")
	)
	flag.Parse()

	logger := &charmLogger{l: charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Prefix:          "shaderpaper",
	})}
	logger.SetDebug(*debug)

	if err := run(*shaderPath, *texturePath, *width, *height, *fps,
		*minScale, *maxScale, *wallpaper, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(shaderPath, texturePath string, width, height int, fps, minScale, maxScale float64,
	wallpaper bool, logger shaderpaper.Logger) error {

	src := defaultShader
	if shaderPath != "" {
		data, err := os.ReadFile(shaderPath)
		if err != nil {
			return fmt.Errorf("read shader: %w", err)
		}
		src = string(data)
	}

	opts := options.Default()
	opts.Width = width
	opts.Height = height
	opts.Wallpaper = wallpaper
	opts.Controller.TargetFPS = fps
	opts.Controller.MinScale = minScale
	opts.Controller.MaxScale = maxScale
	opts.Debug = logger.DebugEnabled()

	engine, err := shaderpaper.New(opts, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Load(src); err != nil {
		return err
	}
	if texturePath != "" {
		if err := engine.LoadExternalTexture(texturePath); err != nil {
			logger.Warnf("external texture: %v", err)
		}
	}

	logger.Infof("running at %.0f FPS target, scale %.2f..%.2f", fps, minScale, maxScale)
	return engine.Run()
}
