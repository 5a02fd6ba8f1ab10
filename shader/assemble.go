package shader

import "strings"

// VertexSource is the shared fullscreen-quad vertex shader. Every pass uses
// it; only fragment programs differ.
const VertexSource = `#version 410 core
layout (location = 0) in vec2 aPos;
void main() {
    gl_Position = vec4(aPos, 0.0, 1.0);
}
`

// fragmentPreamble declares the Shadertoy built-in inputs each pass may use.
const fragmentPreamble = `#version 410 core
out vec4 spOutColor;

uniform vec3  iResolution;
uniform float iTime;
uniform float iTimeDelta;
uniform int   iFrame;
uniform vec4  iMouse;
uniform sampler2D iChannel0;
uniform sampler2D iChannel1;
uniform sampler2D iChannel2;
uniform sampler2D iChannel3;
uniform vec3  iChannelResolution[4];
`

// fragmentTrampoline hands control to the Shadertoy entry point.
const fragmentTrampoline = `
void main() {
    vec4 c = vec4(0.0);
    mainImage(c, gl_FragCoord.xy);
    spOutColor = c;
}
`

// Assemble builds a complete compilable fragment shader for one pass from the
// shared common section and the pass body. Full Shadertoy-dialect rewriting is
// a collaborator's job; this only wraps the body in the fixed preamble and
// main() trampoline the pipeline requires.
func Assemble(common, body string) string {
	var sb strings.Builder
	sb.Grow(len(fragmentPreamble) + len(common) + len(body) + len(fragmentTrampoline) + 16)
	sb.WriteString(fragmentPreamble)
	if common != "" {
		sb.WriteString(common)
		if !strings.HasSuffix(common, "\n") {
			sb.WriteByte('\n')
		}
	}
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString(fragmentTrampoline)
	return sb.String()
}
