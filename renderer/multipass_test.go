package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaderpaper/shaderpaper/shader"
)

const feedbackShader = `
// Buffer A
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    vec4 prev = texture(iChannel0, uv);
    c = mix(prev, vec4(uv, 0.0, 1.0), 0.05);
}

// Image
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    c = texture(iChannel0, uv);
}
`

func newTestShader(t *testing.T, b Backend, src string) *MultipassShader {
	t.Helper()
	m, err := NewMultipassShader(b, nil, src, 32, 1)
	require.NoError(t, err)
	return m
}

func initTestShader(t *testing.T, b Backend, src string, w, h int) *MultipassShader {
	t.Helper()
	m := newTestShader(t, b, src)
	require.NoError(t, m.InitGL(w, h))
	require.True(t, m.IsReady(), "compile report: %s", m.CompileReport())
	return m
}

func TestNew_SinglePassImageOnly(t *testing.T) {
	m := newTestShader(t, newFakeBackend(), `void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); }`)

	require.Len(t, m.Passes(), 1)
	assert.Equal(t, shader.PassImage, m.Passes()[0].Kind)
	assert.False(t, m.Multipass())
}

func TestNew_ParseErrorIsFatal(t *testing.T) {
	_, err := NewMultipassShader(newFakeBackend(), nil, "", 32, 1)
	assert.ErrorIs(t, err, shader.ErrNilSource)
}

func TestNew_MissingImagePassRejected(t *testing.T) {
	src := `
// Buffer A
void mainImage(out vec4 c, in vec2 p) { c = vec4(0.0); }

// Buffer B
void mainImage(out vec4 c, in vec2 p) { c = vec4(0.0); }
`
	_, err := NewMultipassShader(newFakeBackend(), nil, src, 32, 1)
	assert.ErrorIs(t, err, ErrNoImagePass)
}

func TestNew_DuplicatePassRejected(t *testing.T) {
	src := `
// Image
void mainImage(out vec4 c, in vec2 p) { c = vec4(0.0); }

// Image
void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); }
`
	_, err := NewMultipassShader(newFakeBackend(), nil, src, 32, 1)
	assert.ErrorIs(t, err, ErrDuplicatePass)
}

func TestInitGL_CompileFailureIsPerPass(t *testing.T) {
	b := newFakeBackend()
	b.failCompile = "mix(prev"

	m := newTestShader(t, b, feedbackShader)
	require.NoError(t, m.InitGL(100, 80))

	bufA := m.Passes()[0]
	img := m.Passes()[1]
	assert.False(t, bufA.Compiled)
	assert.NotEmpty(t, bufA.ErrorLog)
	assert.True(t, img.Compiled)

	assert.False(t, m.IsReady())
	report := m.CompileReport()
	assert.Contains(t, report, "Buffer A")
	assert.Contains(t, report, "syntax error")
	assert.NotContains(t, report, "Image:")

	assert.ErrorIs(t, m.RenderFrame(0, 0, mgl32.Vec4{}), ErrNotReady)
}

func TestRenderFrame_PingPongInvariant(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	bufA := m.Passes()[0]
	require.Equal(t, shader.PassBufferA, bufA.Kind)

	const frames = 6
	for i := 0; i < frames; i++ {
		require.NoError(t, m.RenderFrame(float32(i), 0.016, mgl32.Vec4{}))
	}
	assert.Equal(t, frames, m.Frame())

	// Two draws per frame: Buffer A then Image.
	require.Len(t, b.draws, frames*2)
	var prevWritten uint32
	for i := 0; i < frames; i++ {
		aDraw := b.draws[i*2]
		imgDraw := b.draws[i*2+1]

		// A pass never samples the texture it is writing.
		assert.NotEqual(t, aDraw.targetTex, aDraw.bound[0],
			"frame %d: buffer A read its own write target", i)

		// Self-feedback reads the texture written on the previous frame.
		if i > 0 {
			assert.Equal(t, prevWritten, aDraw.bound[0],
				"frame %d: feedback did not read the prior frame's output", i)
		}

		// Ping-pong alternates write targets every frame.
		if i > 0 {
			assert.NotEqual(t, prevWritten, aDraw.targetTex,
				"frame %d: write target did not alternate", i)
		}

		// The image pass consumes this frame's buffer A output.
		assert.Equal(t, uint32(0), imgDraw.fbo)
		assert.Equal(t, aDraw.targetTex, imgDraw.bound[0],
			"frame %d: image pass did not read the fresh buffer output", i)

		prevWritten = aDraw.targetTex
	}
}

func TestRenderFrame_BufferScaledImageFullRes(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 200, 100)

	_, err := m.Resize(0.5, 200, 100)
	require.NoError(t, err)
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))

	aDraw := b.draws[len(b.draws)-2]
	imgDraw := b.draws[len(b.draws)-1]
	assert.Equal(t, 100, aDraw.viewportW)
	assert.Equal(t, 50, aDraw.viewportH)
	assert.Equal(t, 200, imgDraw.viewportW)
	assert.Equal(t, 100, imgDraw.viewportH)
}

func TestResize_SameParamsIsNoOp(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	before := b.textureAllocs
	changed, err := m.Resize(1.0, 100, 80)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, b.textureAllocs)
}

func TestResize_TinyScaleChangeSamePixelsIsNoOp(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	before := b.textureAllocs
	changed, err := m.Resize(1.0000001, 100, 80)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, b.textureAllocs)
}

func TestResize_ReallocatesAndClears(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))

	allocsBefore := b.textureAllocs
	clearsBefore := b.clears

	changed, err := m.Resize(0.5, 100, 80)
	require.NoError(t, err)
	assert.True(t, changed)
	// One buffer pass, two ping-pong textures.
	assert.Equal(t, allocsBefore+2, b.textureAllocs)

	// The fresh pair is cleared on the next render, not at resize.
	assert.Equal(t, clearsBefore, b.clears)
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))
	assert.Equal(t, clearsBefore+2, b.clears)

	// Clearing happens once, not every frame.
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))
	assert.Equal(t, clearsBefore+2, b.clears)
}

func TestResize_BeforeInitRejected(t *testing.T) {
	m := newTestShader(t, newFakeBackend(), feedbackShader)
	_, err := m.Resize(0.5, 100, 80)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestResize_AllocationFailureDisablesPassOnly(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	b.failTexture = true
	changed, err := m.Resize(0.5, 100, 80)
	assert.True(t, changed)
	assert.Error(t, err)

	bufA := m.Passes()[0]
	img := m.Passes()[1]
	assert.False(t, bufA.Compiled)
	assert.True(t, img.Compiled)
	assert.False(t, m.IsReady())
}

func TestDestroy_Idempotent(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	m.Destroy()
	texDeletes := b.textureDeletes
	progDeletes := b.programDeletes
	quadDeletes := b.quadDeletes

	m.Destroy()
	assert.Equal(t, texDeletes, b.textureDeletes)
	assert.Equal(t, progDeletes, b.programDeletes)
	assert.Equal(t, quadDeletes, b.quadDeletes)

	assert.Empty(t, b.textures, "all textures released")
	assert.Empty(t, b.programs, "all programs released")
	assert.False(t, m.IsReady())
}

func TestDestroy_SafeWithoutInit(t *testing.T) {
	b := newFakeBackend()
	m := newTestShader(t, b, feedbackShader)
	m.Destroy()
	assert.Zero(t, b.textureDeletes)
}

func TestOverrideBinding(t *testing.T) {
	b := newFakeBackend()
	m := initTestShader(t, b, feedbackShader, 100, 80)

	require.NoError(t, m.OverrideBinding(shader.PassBufferA, 1, shader.BindExternal))
	assert.Error(t, m.OverrideBinding(shader.PassImage, 0, shader.BindSelf),
		"self binding must stay illegal on the image pass")
	assert.Error(t, m.OverrideBinding(shader.PassBufferB, 0, shader.BindNoise),
		"no such pass")
	assert.Error(t, m.OverrideBinding(shader.PassBufferA, 7, shader.BindNoise))

	// With no external texture set, the external channel falls back to noise.
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))
	m.SetExternalTexture(4242, 640, 480)
	require.NoError(t, m.RenderFrame(0, 0.016, mgl32.Vec4{}))
	aDraw := b.draws[len(b.draws)-2]
	assert.Equal(t, uint32(4242), aDraw.bound[1])
}

func TestChannelBindings_ResolvedOnConstruction(t *testing.T) {
	m := newTestShader(t, newFakeBackend(), feedbackShader)

	bufA := m.Passes()[0]
	img := m.Passes()[1]
	assert.Equal(t, shader.BindSelf, bufA.Bindings[0])
	assert.Equal(t, shader.BindBufferA, img.Bindings[0])
	assert.Equal(t, shader.BindNone, img.Bindings[1])
}
