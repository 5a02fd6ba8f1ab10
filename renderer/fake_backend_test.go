package renderer

import (
	"errors"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// drawRecord captures the state that matters at one draw call: which target
// was written and which textures were readable.
type drawRecord struct {
	program   uint32
	fbo       uint32
	targetTex uint32 // texture attached to fbo at draw time; 0 for the screen
	bound     [4]uint32
	viewportW int
	viewportH int
}

// fakeBackend implements Backend with plain bookkeeping so graph logic is
// testable without a GL context.
type fakeBackend struct {
	nextID uint32

	textures map[uint32]bool
	fbos     map[uint32]uint32 // fbo -> attached texture
	programs map[uint32]bool

	textureAllocs  int
	textureDeletes int
	programDeletes int
	quadDeletes    int
	clears         int

	// failCompile makes CreateProgram fail for fragment sources containing
	// the substring; failTexture makes every texture allocation fail.
	failCompile string
	failTexture bool

	boundFBO   uint32
	viewportW  int
	viewportH  int
	curProgram uint32
	units      [4]uint32

	draws []drawRecord
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		textures: make(map[uint32]bool),
		fbos:     make(map[uint32]uint32),
		programs: make(map[uint32]bool),
	}
}

func (f *fakeBackend) id() uint32 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) Init() error { return nil }

func (f *fakeBackend) CreateTexture(w, h int) (uint32, error) {
	if f.failTexture {
		return 0, errors.New("fake: out of texture memory")
	}
	id := f.id()
	f.textures[id] = true
	f.textureAllocs++
	return id, nil
}

func (f *fakeBackend) DeleteTexture(id uint32) {
	if f.textures[id] {
		delete(f.textures, id)
		f.textureDeletes++
	}
}

func (f *fakeBackend) UploadTexture(id uint32, w, h int, pixels []byte) {}

func (f *fakeBackend) CreateFramebuffer() uint32 {
	id := f.id()
	f.fbos[id] = 0
	return id
}

func (f *fakeBackend) DeleteFramebuffer(id uint32) { delete(f.fbos, id) }

func (f *fakeBackend) AttachTexture(fbo, tex uint32) { f.fbos[fbo] = tex }

func (f *fakeBackend) CreateProgram(vertexSrc, fragmentSrc string) (uint32, string, error) {
	if f.failCompile != "" && strings.Contains(fragmentSrc, f.failCompile) {
		return 0, "0:12: syntax error", errors.New("fake: compile failed")
	}
	id := f.id()
	f.programs[id] = true
	return id, "", nil
}

func (f *fakeBackend) DeleteProgram(id uint32) {
	if f.programs[id] {
		delete(f.programs, id)
		f.programDeletes++
	}
}

func (f *fakeBackend) CreateQuad() (uint32, uint32) { return f.id(), f.id() }

func (f *fakeBackend) DeleteQuad(vao, vbo uint32) { f.quadDeletes++ }

func (f *fakeBackend) BindTarget(fbo uint32, w, h int) {
	f.boundFBO = fbo
	f.viewportW = w
	f.viewportH = h
}

func (f *fakeBackend) Clear() { f.clears++ }

func (f *fakeBackend) UseProgram(id uint32) { f.curProgram = id }

func (f *fakeBackend) BindTexture(unit int, tex uint32) {
	if unit >= 0 && unit < 4 {
		f.units[unit] = tex
	}
}

func (f *fakeBackend) DrawQuad(vao uint32) {
	rec := drawRecord{
		program:   f.curProgram,
		fbo:       f.boundFBO,
		bound:     f.units,
		viewportW: f.viewportW,
		viewportH: f.viewportH,
	}
	if f.boundFBO != 0 {
		rec.targetTex = f.fbos[f.boundFBO]
	}
	f.draws = append(f.draws, rec)
}

func (f *fakeBackend) UniformLocation(prog uint32, name string) int32 { return 1 }

func (f *fakeBackend) SetInt(loc int32, v int32)              {}
func (f *fakeBackend) SetFloat(loc int32, v float32)          {}
func (f *fakeBackend) SetVec3(loc int32, v mgl32.Vec3)        {}
func (f *fakeBackend) SetVec4(loc int32, v mgl32.Vec4)        {}
func (f *fakeBackend) SetVec3Array(loc int32, v []mgl32.Vec3) {}
