package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferPass(body string) PassSource {
	return PassSource{Kind: PassBufferA, Body: body}
}

func TestResolveChannels_UnusedDefaultsToNoise(t *testing.T) {
	p := bufferPass(`void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); }`)
	b := ResolveChannels(p, [4]bool{})
	for i := 0; i < 4; i++ {
		assert.Equal(t, BindNoise, b[i], "channel %d", i)
	}
}

func TestResolveChannels_NoiseLookupWins(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    float n = fract(texture(iChannel1, fragCoord / 256.0).x * 437.585453);
    c = vec4(n);
}`)
	b := ResolveChannels(p, [4]bool{})
	assert.Equal(t, BindNoise, b[1])
}

func TestResolveChannels_Channel0FeedbackConvention(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    vec4 prev = texture(iChannel0, uv);
    c = mix(prev, vec4(uv, 0.0, 1.0), 0.05);
}`)
	b := ResolveChannels(p, [4]bool{})
	assert.Equal(t, BindSelf, b[0])
}

func TestResolveChannels_Channel0NoiseTiedWithScreenSpace(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    float n = texture(iChannel0, uv / 256.0).x;
    c = vec4(n);
}`)
	b := ResolveChannels(p, [4]bool{})
	// Strong noise signals on channel 0 beat the feedback convention even
	// when screen-space scores keep them from being strictly dominant.
	assert.Equal(t, BindNoise, b[0])
}

func TestResolveChannels_ScreenSpaceBufferRead(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    c = texture(iChannel1, uv) + texture(iChannel2, uv);
}`)
	b := ResolveChannels(p, [4]bool{})
	// Ambiguous screen-space reads map by index: 1->A, 2->B.
	assert.Equal(t, BindBufferA, b[1])
	assert.Equal(t, BindBufferB, b[2])
}

func TestResolveChannels_WeakSignalFallsBackByIndex(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    c = texture(iChannel3, vec2(0.5));
}`)
	b := ResolveChannels(p, [4]bool{})
	assert.Equal(t, BindBufferC, b[3])
}

func TestResolveChannels_ImagePassFixedOrder(t *testing.T) {
	p := PassSource{Kind: PassImage, Body: `
void mainImage(out vec4 c, in vec2 fragCoord) {
    c = texture(iChannel0, fragCoord / iResolution.xy);
}`}

	b := ResolveChannels(p, [4]bool{true, true, false, false})
	assert.Equal(t, BindBufferA, b[0])
	assert.Equal(t, BindBufferB, b[1])
	assert.Equal(t, BindNone, b[2])
	assert.Equal(t, BindNone, b[3])
}

func TestResolveChannels_Deterministic(t *testing.T) {
	p := bufferPass(`
void mainImage(out vec4 c, in vec2 fragCoord) {
    vec2 uv = fragCoord / iResolution.xy;
    vec4 prev = texture(iChannel0, uv);
    float n = texture(iChannel1, uv * 0.013).r;
    c = mix(prev, vec4(n), 0.1);
    c += texture(iChannel2, uv);
}`)
	first := ResolveChannels(p, [4]bool{})
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, ResolveChannels(p, [4]bool{}))
	}
}

func TestBindingBufferIndex(t *testing.T) {
	assert.Equal(t, 0, BindBufferA.BufferIndex())
	assert.Equal(t, 3, BindBufferD.BufferIndex())
	assert.Equal(t, -1, BindSelf.BufferIndex())
	assert.Equal(t, -1, BindNoise.BufferIndex())
}

func TestAssemble_WrapsBodyWithPreambleAndTrampoline(t *testing.T) {
	src := Assemble("float k = 2.0;", "void mainImage(out vec4 c, in vec2 p) { c = vec4(k); }")

	require.Contains(t, src, "#version 410 core")
	assert.Contains(t, src, "uniform sampler2D iChannel3;")
	assert.Contains(t, src, "float k = 2.0;")
	assert.Contains(t, src, "mainImage(c, gl_FragCoord.xy);")
	// Common code must precede the pass body.
	assert.Less(t, indexOf(src, "float k"), indexOf(src, "void mainImage"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
