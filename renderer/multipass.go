package renderer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/shaderpaper/shaderpaper/inputs"
	"github.com/shaderpaper/shaderpaper/shader"
)

var (
	// ErrNoImagePass rejects a graph that cannot render anything visible.
	ErrNoImagePass = errors.New("renderer: shader has no image pass")
	// ErrDuplicatePass rejects two passes claiming the same buffer slot.
	ErrDuplicatePass = errors.New("renderer: duplicate pass kind")
	// ErrNotReady is returned when rendering is attempted before every pass
	// compiled and GL resources exist.
	ErrNotReady = errors.New("renderer: shader not ready")
)

// passOrder is the fixed execution order: buffers feed forward within a
// frame, self-feedback and backward reads see the previous frame. This is the
// Shadertoy ordering, not a general dependency scheduler.
var passOrder = []shader.PassKind{
	shader.PassBufferA,
	shader.PassBufferB,
	shader.PassBufferC,
	shader.PassBufferD,
	shader.PassImage,
}

// MultipassShader owns the full render graph for one wallpaper shader: up to
// four buffer passes and the image pass, the shared fullscreen quad, the
// procedural noise texture, and the current resolution scale.
//
// Everything runs on the thread owning the GL context; the type is not safe
// for concurrent use and does not need to be.
type MultipassShader struct {
	ID uuid.UUID

	backend Backend
	log     Logger
	prof    *Profiler

	passes []*Pass
	byKind map[shader.PassKind]*Pass
	image  *Pass

	quadVAO uint32
	quadVBO uint32

	noiseTex  uint32
	noiseSize int
	noiseSeed int64

	externalTex uint32
	externalRes mgl32.Vec3

	scale float64
	outW  int
	outH  int

	frame       int32
	initialized bool
}

// NewMultipassShader parses raw shader text into a render graph. No GL
// resources are touched until InitGL. Parse failures and a missing or
// duplicated image pass are fatal: no partial graph is returned.
func NewMultipassShader(b Backend, log Logger, src string, noiseSize int, noiseSeed int64) (*MultipassShader, error) {
	if log == nil {
		log = nopLogger{}
	}
	parsed, err := shader.Split(src)
	if err != nil {
		return nil, err
	}

	m := &MultipassShader{
		ID:        uuid.New(),
		backend:   b,
		log:       log,
		prof:      NewProfiler(),
		byKind:    make(map[shader.PassKind]*Pass),
		noiseSize: noiseSize,
		noiseSeed: noiseSeed,
		scale:     1.0,
	}

	var present [4]bool
	for _, ps := range parsed.Passes {
		if idx := int(ps.Kind); ps.Kind.IsBuffer() && idx < 4 {
			present[idx] = true
		}
	}

	for _, ps := range parsed.Passes {
		if _, dup := m.byKind[ps.Kind]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePass, ps.Kind)
		}
		p := &Pass{
			Kind:     ps.Kind,
			Source:   shader.Assemble(parsed.Common, ps.Body),
			Bindings: shader.ResolveChannels(ps, present),
		}
		m.byKind[ps.Kind] = p
	}

	img, ok := m.byKind[shader.PassImage]
	if !ok {
		return nil, ErrNoImagePass
	}
	m.image = img

	for _, kind := range passOrder {
		if p, ok := m.byKind[kind]; ok {
			m.passes = append(m.passes, p)
		}
	}

	for _, p := range m.passes {
		log.Debugf("shader %s: %s channels [%s %s %s %s]", m.ID, p.Kind,
			p.Bindings[0], p.Bindings[1], p.Bindings[2], p.Bindings[3])
	}
	return m, nil
}

// InitGL compiles every pass and allocates GL resources for the given output
// size. Per-pass compile failures are recorded on the pass and do not abort
// the others; the caller checks IsReady / CompileReport afterwards.
func (m *MultipassShader) InitGL(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("renderer: bad output size %dx%d", width, height)
	}
	m.outW, m.outH = width, height

	m.quadVAO, m.quadVBO = m.backend.CreateQuad()

	var err error
	m.noiseTex, err = m.backend.CreateTexture(m.noiseSize, m.noiseSize)
	if err != nil {
		return fmt.Errorf("noise texture: %w", err)
	}
	m.backend.UploadTexture(m.noiseTex, m.noiseSize, m.noiseSize,
		inputs.NoiseRGBA(m.noiseSize, m.noiseSeed))

	for _, p := range m.passes {
		p.compile(m.backend)
		if !p.Compiled {
			m.log.Errorf("shader %s: %s failed to compile: %s", m.ID, p.Kind, p.ErrorLog)
		}
	}

	if err := m.allocatePasses(); err != nil {
		m.log.Errorf("shader %s: %v", m.ID, err)
	}

	m.initialized = true
	return nil
}

func (m *MultipassShader) allocatePasses() error {
	bw, bh := m.bufferSize()
	var firstErr error
	for _, p := range m.passes {
		w, h := bw, bh
		if p.Kind == shader.PassImage {
			w, h = m.outW, m.outH
		}
		if err := p.allocate(m.backend, w, h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// bufferSize is the scaled size buffer passes render at. The image pass is
// always full output resolution.
func (m *MultipassShader) bufferSize() (int, int) {
	w := int(math.Round(m.scale * float64(m.outW)))
	h := int(math.Round(m.scale * float64(m.outH)))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Resize applies a new scale and/or output size. Resizing to the values the
// graph already has is a no-op with no GL traffic. Returns whether a real
// reallocation happened.
func (m *MultipassShader) Resize(scale float64, width, height int) (bool, error) {
	if !m.initialized {
		return false, ErrNotReady
	}
	if scale <= 0 {
		return false, fmt.Errorf("renderer: bad scale %v", scale)
	}
	if scale == m.scale && width == m.outW && height == m.outH {
		return false, nil
	}
	prevBW, prevBH := m.bufferSize()
	m.scale = scale
	m.outW, m.outH = width, height
	bw, bh := m.bufferSize()
	if bw == prevBW && bh == prevBH && width == m.image.Width && height == m.image.Height {
		// Scale moved but quantized to the same pixel sizes.
		return false, nil
	}

	m.log.Debugf("shader %s: resize scale=%.3f buffers=%dx%d output=%dx%d",
		m.ID, scale, bw, bh, width, height)
	return true, m.allocatePasses()
}

// IsReady reports whether every pass compiled and GL state exists.
func (m *MultipassShader) IsReady() bool {
	if !m.initialized || len(m.passes) == 0 {
		return false
	}
	for _, p := range m.passes {
		if !p.Compiled {
			return false
		}
	}
	return true
}

// CompileReport aggregates the info logs of all failing passes into one
// report, empty when everything compiled.
func (m *MultipassShader) CompileReport() string {
	var sb strings.Builder
	for _, p := range m.passes {
		if p.Compiled || p.ErrorLog == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n%s\n", p.Kind, strings.TrimSpace(p.ErrorLog))
	}
	return sb.String()
}

// SetExternalTexture binds a caller-provided texture (decoded wallpaper
// image, video frame) to channels classified as external.
func (m *MultipassShader) SetExternalTexture(tex uint32, width, height int) {
	m.externalTex = tex
	m.externalRes = mgl32.Vec3{float32(width), float32(height), 1}
}

// OverrideBinding replaces a heuristically resolved channel binding, for
// callers that know better (an external texture input, a correction for a
// misclassified channel). Bindings are otherwise fixed at parse time.
func (m *MultipassShader) OverrideBinding(kind shader.PassKind, channel int, bind shader.Binding) error {
	p, ok := m.byKind[kind]
	if !ok {
		return fmt.Errorf("renderer: no %s pass", kind)
	}
	if channel < 0 || channel > 3 {
		return fmt.Errorf("renderer: bad channel %d", channel)
	}
	if bind == shader.BindSelf && !p.Kind.IsBuffer() {
		return fmt.Errorf("renderer: self binding is not legal on the image pass")
	}
	p.Bindings[channel] = bind
	return nil
}

// RenderFrame executes the graph once: buffers in fixed A-D order, then the
// image pass to the presentation surface. Each buffer pass publishes its
// freshly written texture immediately after its draw, so later passes read
// this frame's output of earlier passes while feedback reads last frame's.
func (m *MultipassShader) RenderFrame(t, dt float32, mouse mgl32.Vec4) error {
	if !m.IsReady() {
		return ErrNotReady
	}
	for _, p := range m.passes {
		m.prof.BeginScope(p.Kind.String())
		m.renderPass(p, t, dt, mouse)
		m.prof.EndScope(p.Kind.String())
	}
	m.frame++
	return nil
}

func (m *MultipassShader) renderPass(p *Pass, t, dt float32, mouse mgl32.Vec4) {
	b := m.backend

	if p.Kind.IsBuffer() {
		if p.needsClear {
			// Fresh allocations hold garbage; show transparent black
			// instead of a stale previous-resolution frame.
			for i := 0; i < 2; i++ {
				b.AttachTexture(p.FBO, p.Textures[i])
				b.BindTarget(p.FBO, p.Width, p.Height)
				b.Clear()
			}
			p.needsClear = false
		}
		b.AttachTexture(p.FBO, p.Textures[p.WriteIndex()])
		b.BindTarget(p.FBO, p.Width, p.Height)
	} else {
		b.BindTarget(0, m.outW, m.outH)
	}

	b.UseProgram(p.Program)

	var chRes [4]mgl32.Vec3
	for i, bind := range p.Bindings {
		tex, res := m.channelTexture(p, bind)
		b.BindTexture(i, tex)
		b.SetInt(p.locs.channels[i], int32(i))
		chRes[i] = res
	}

	aspect := float32(1)
	if p.Height > 0 {
		aspect = float32(p.Width) / float32(p.Height)
	}
	b.SetVec3(p.locs.resolution, mgl32.Vec3{float32(p.Width), float32(p.Height), aspect})
	b.SetFloat(p.locs.time, t)
	b.SetFloat(p.locs.timeDelta, dt)
	b.SetInt(p.locs.frame, m.frame)
	b.SetVec4(p.locs.mouse, mouse)
	b.SetVec3Array(p.locs.channelRes, chRes[:])

	b.DrawQuad(m.quadVAO)

	if p.Kind.IsBuffer() {
		p.swap()
	}
}

// channelTexture maps a resolved binding to the texture to sample this frame.
// Reads always go through the owning pass's ReadIndex, never the texture being
// written.
func (m *MultipassShader) channelTexture(p *Pass, bind shader.Binding) (uint32, mgl32.Vec3) {
	noiseRes := mgl32.Vec3{float32(m.noiseSize), float32(m.noiseSize), 1}
	switch {
	case bind == shader.BindSelf:
		return p.Textures[p.ReadIndex], mgl32.Vec3{float32(p.Width), float32(p.Height), 1}
	case bind.BufferIndex() >= 0:
		src, ok := m.byKind[shader.PassBufferA+shader.PassKind(bind.BufferIndex())]
		if !ok {
			return m.noiseTex, noiseRes
		}
		return src.Textures[src.ReadIndex], mgl32.Vec3{float32(src.Width), float32(src.Height), 1}
	case bind == shader.BindExternal && m.externalTex != 0:
		return m.externalTex, m.externalRes
	case bind == shader.BindNone:
		return 0, mgl32.Vec3{}
	default:
		return m.noiseTex, noiseRes
	}
}

// Destroy releases every GL object the graph owns. Idempotent, and safe after
// a partial InitGL: already-released handles are skipped.
func (m *MultipassShader) Destroy() {
	for _, p := range m.passes {
		p.release(m.backend)
	}
	if m.noiseTex != 0 {
		m.backend.DeleteTexture(m.noiseTex)
		m.noiseTex = 0
	}
	if m.quadVAO != 0 || m.quadVBO != 0 {
		m.backend.DeleteQuad(m.quadVAO, m.quadVBO)
		m.quadVAO, m.quadVBO = 0, 0
	}
	m.initialized = false
}

// Scale is the graph's cached resolution scale.
func (m *MultipassShader) Scale() float64 { return m.scale }

// OutputWidth is the presentation surface width the graph was last sized to.
func (m *MultipassShader) OutputWidth() int { return m.outW }

// OutputHeight is the presentation surface height the graph was last sized to.
func (m *MultipassShader) OutputHeight() int { return m.outH }

// Frame is the number of frames rendered since load.
func (m *MultipassShader) Frame() int { return int(m.frame) }

// Passes exposes the ordered passes, buffers first, image last.
func (m *MultipassShader) Passes() []*Pass { return m.passes }

// Multipass reports whether the graph has buffer passes at all.
func (m *MultipassShader) Multipass() bool { return len(m.passes) > 1 }

// Profiler exposes per-pass CPU timings of the most recent frame.
func (m *MultipassShader) Profiler() *Profiler { return m.prof }
