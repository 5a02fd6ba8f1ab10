package renderer

import (
	"fmt"

	"github.com/shaderpaper/shaderpaper/shader"
)

// uniformLocs caches the uniform locations of one compiled pass program.
type uniformLocs struct {
	resolution int32
	time       int32
	timeDelta  int32
	frame      int32
	mouse      int32
	channels   [4]int32
	channelRes int32
}

// Pass is one shader stage of the graph: a compiled program plus, for buffer
// passes, a two-texture ping-pong pair and the framebuffer rendering into it.
// The Image pass owns no textures and always targets the presentation surface.
type Pass struct {
	Kind     shader.PassKind
	Source   string
	Bindings [4]shader.Binding

	Program  uint32
	Textures [2]uint32
	FBO      uint32

	// ReadIndex names the texture holding the most recently completed
	// frame's output. Rendering always targets the opposite texture.
	ReadIndex int

	Width  int
	Height int

	Compiled bool
	ErrorLog string

	needsClear bool
	locs       uniformLocs
}

// WriteIndex is the texture the next draw targets, always the one not being
// read.
func (p *Pass) WriteIndex() int { return 1 - p.ReadIndex }

// swap publishes the just-written texture as the new read side. Called once
// per frame, immediately after the pass's draw call.
func (p *Pass) swap() { p.ReadIndex = p.WriteIndex() }

// compile builds the pass program. A failure marks the pass uncompiled with
// the driver's info log captured; it never aborts the rest of the graph.
func (p *Pass) compile(b Backend) {
	if p.Program != 0 {
		b.DeleteProgram(p.Program)
		p.Program = 0
	}
	prog, infoLog, err := b.CreateProgram(shader.VertexSource, p.Source)
	if err != nil {
		p.Compiled = false
		p.ErrorLog = infoLog
		return
	}
	p.Program = prog
	p.Compiled = true
	p.ErrorLog = ""
	p.lookupUniforms(b)
}

func (p *Pass) lookupUniforms(b Backend) {
	p.locs.resolution = b.UniformLocation(p.Program, "iResolution")
	p.locs.time = b.UniformLocation(p.Program, "iTime")
	p.locs.timeDelta = b.UniformLocation(p.Program, "iTimeDelta")
	p.locs.frame = b.UniformLocation(p.Program, "iFrame")
	p.locs.mouse = b.UniformLocation(p.Program, "iMouse")
	for i := 0; i < 4; i++ {
		p.locs.channels[i] = b.UniformLocation(p.Program, fmt.Sprintf("iChannel%d", i))
	}
	p.locs.channelRes = b.UniformLocation(p.Program, "iChannelResolution[0]")
	if p.locs.channelRes < 0 {
		p.locs.channelRes = b.UniformLocation(p.Program, "iChannelResolution")
	}
}

// allocate sizes the ping-pong pair (buffer passes only). Reallocation marks
// the pass for clearing so a stale previous-resolution frame is never shown.
func (p *Pass) allocate(b Backend, width, height int) error {
	if !p.Kind.IsBuffer() {
		p.Width = width
		p.Height = height
		return nil
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	p.releaseTextures(b)
	if p.FBO == 0 {
		p.FBO = b.CreateFramebuffer()
	}
	for i := 0; i < 2; i++ {
		tex, err := b.CreateTexture(width, height)
		if err != nil {
			// The pass is unusable at this size; release the half-built
			// pair and surface the failure for this pass alone.
			p.releaseTextures(b)
			p.Compiled = false
			p.ErrorLog = err.Error()
			return fmt.Errorf("%s: %w", p.Kind, err)
		}
		p.Textures[i] = tex
	}
	p.Width = width
	p.Height = height
	p.needsClear = true
	return nil
}

func (p *Pass) releaseTextures(b Backend) {
	for i := 0; i < 2; i++ {
		if p.Textures[i] != 0 {
			b.DeleteTexture(p.Textures[i])
			p.Textures[i] = 0
		}
	}
}

// release frees all GL objects the pass owns. Safe to call repeatedly and on
// partially initialized passes.
func (p *Pass) release(b Backend) {
	p.releaseTextures(b)
	if p.FBO != 0 {
		b.DeleteFramebuffer(p.FBO)
		p.FBO = 0
	}
	if p.Program != 0 {
		b.DeleteProgram(p.Program)
		p.Program = 0
	}
	p.Compiled = false
}
