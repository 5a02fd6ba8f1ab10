package renderer

import "github.com/go-gl/mathgl/mgl32"

// Backend is the slice of the GL API the render graph touches. The graph's
// ordering and ping-pong logic never talk to OpenGL directly, which keeps
// them testable without a context; GLBackend is the real implementation.
type Backend interface {
	// Init loads the GL function pointers. Must be called once with a
	// current context before anything else.
	Init() error

	// CreateTexture allocates an RGBA float texture of the given size.
	CreateTexture(width, height int) (uint32, error)
	DeleteTexture(id uint32)
	// UploadTexture replaces the full contents of a texture with RGBA8
	// pixel data.
	UploadTexture(id uint32, width, height int, pixels []byte)

	CreateFramebuffer() uint32
	DeleteFramebuffer(id uint32)
	// AttachTexture sets the color attachment of a framebuffer.
	AttachTexture(fbo, tex uint32)

	// CreateProgram compiles and links a program, returning the combined
	// info log on failure.
	CreateProgram(vertexSrc, fragmentSrc string) (prog uint32, infoLog string, err error)
	DeleteProgram(id uint32)

	CreateQuad() (vao, vbo uint32)
	DeleteQuad(vao, vbo uint32)

	// BindTarget makes fbo (0 for the presentation surface) the render
	// target and sets the viewport.
	BindTarget(fbo uint32, width, height int)
	// Clear fills the bound target with transparent black.
	Clear()

	UseProgram(id uint32)
	BindTexture(unit int, tex uint32)
	DrawQuad(vao uint32)

	UniformLocation(prog uint32, name string) int32
	SetInt(loc int32, v int32)
	SetFloat(loc int32, v float32)
	SetVec3(loc int32, v mgl32.Vec3)
	SetVec4(loc int32, v mgl32.Vec4)
	SetVec3Array(loc int32, v []mgl32.Vec3)
}

// Logger is the logging surface the renderer needs. The root package's
// loggers satisfy it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
