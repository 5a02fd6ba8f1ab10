package renderer

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// GLBackend drives a real OpenGL 4.1 core context. All calls assume the
// context is current on the calling thread.
type GLBackend struct{}

func (GLBackend) Init() error { return gl.Init() }

func (GLBackend) CreateTexture(width, height int) (uint32, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	// Float storage: Shadertoy buffer passes routinely carry state (positions,
	// velocities) that RGBA8 would crush.
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(width), int32(height), 0, gl.RGBA, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	if e := gl.GetError(); e != gl.NO_ERROR {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("texture allocation %dx%d failed: gl error 0x%x", width, height, e)
	}
	return tex, nil
}

func (GLBackend) DeleteTexture(id uint32) {
	if id != 0 {
		gl.DeleteTextures(1, &id)
	}
}

func (GLBackend) UploadTexture(id uint32, width, height int, pixels []byte) {
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
}

func (GLBackend) CreateFramebuffer() uint32 {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	return fbo
}

func (GLBackend) DeleteFramebuffer(id uint32) {
	if id != 0 {
		gl.DeleteFramebuffers(1, &id)
	}
}

func (GLBackend) AttachTexture(fbo, tex uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
}

func (GLBackend) CreateProgram(vertexSrc, fragmentSrc string) (uint32, string, error) {
	vs, vlog, err := compileStage(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, vlog, err
	}
	fs, flog, err := compileStage(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, flog, err
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		infoLog := programLog(prog)
		gl.DeleteProgram(prog)
		return 0, infoLog, fmt.Errorf("program link failed: %s", infoLog)
	}
	return prog, "", nil
}

func compileStage(src string, kind uint32) (uint32, string, error) {
	sh := gl.CreateShader(kind)
	csources, free := gl.Strs(src + "\x00")
	gl.ShaderSource(sh, 1, csources, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		infoLog := strings.Repeat("\x00", int(logLen)+1)
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(infoLog))
		gl.DeleteShader(sh)
		infoLog = strings.TrimRight(infoLog, "\x00")
		return 0, infoLog, fmt.Errorf("shader compile failed: %s", infoLog)
	}
	return sh, "", nil
}

func programLog(prog uint32) string {
	var logLen int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
	infoLog := strings.Repeat("\x00", int(logLen)+1)
	gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(infoLog))
	return strings.TrimRight(infoLog, "\x00")
}

func (GLBackend) DeleteProgram(id uint32) {
	if id != 0 {
		gl.DeleteProgram(id)
	}
}

// CreateQuad builds the shared fullscreen triangle-strip quad.
func (GLBackend) CreateQuad() (uint32, uint32) {
	verts := []float32{
		-1, -1,
		1, -1,
		-1, 1,
		1, 1,
	}
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 2*4, 0)
	gl.BindVertexArray(0)
	return vao, vbo
}

func (GLBackend) DeleteQuad(vao, vbo uint32) {
	if vbo != 0 {
		gl.DeleteBuffers(1, &vbo)
	}
	if vao != 0 {
		gl.DeleteVertexArrays(1, &vao)
	}
}

func (GLBackend) BindTarget(fbo uint32, width, height int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (GLBackend) Clear() {
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (GLBackend) UseProgram(id uint32) { gl.UseProgram(id) }

func (GLBackend) BindTexture(unit int, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func (GLBackend) DrawQuad(vao uint32) {
	gl.BindVertexArray(vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
}

func (GLBackend) UniformLocation(prog uint32, name string) int32 {
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}

func (GLBackend) SetInt(loc int32, v int32) {
	if loc >= 0 {
		gl.Uniform1i(loc, v)
	}
}

func (GLBackend) SetFloat(loc int32, v float32) {
	if loc >= 0 {
		gl.Uniform1f(loc, v)
	}
}

func (GLBackend) SetVec3(loc int32, v mgl32.Vec3) {
	if loc >= 0 {
		gl.Uniform3f(loc, v.X(), v.Y(), v.Z())
	}
}

func (GLBackend) SetVec4(loc int32, v mgl32.Vec4) {
	if loc >= 0 {
		gl.Uniform4f(loc, v.X(), v.Y(), v.Z(), v.W())
	}
}

func (GLBackend) SetVec3Array(loc int32, v []mgl32.Vec3) {
	if loc < 0 || len(v) == 0 {
		return
	}
	flat := make([]float32, 0, len(v)*3)
	for _, e := range v {
		flat = append(flat, e.X(), e.Y(), e.Z())
	}
	gl.Uniform3fv(loc, int32(len(v)), &flat[0])
}
