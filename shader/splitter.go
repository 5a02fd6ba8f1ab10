package shader

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNilSource is returned when there is no usable shader text at all.
var ErrNilSource = errors.New("shader: no source text")

// PassKind identifies the role of one render pass within a multipass shader.
type PassKind int

const (
	PassBufferA PassKind = iota
	PassBufferB
	PassBufferC
	PassBufferD
	PassImage
)

func (k PassKind) String() string {
	switch k {
	case PassBufferA:
		return "Buffer A"
	case PassBufferB:
		return "Buffer B"
	case PassBufferC:
		return "Buffer C"
	case PassBufferD:
		return "Buffer D"
	case PassImage:
		return "Image"
	}
	return "Unknown"
}

// IsBuffer reports whether the pass renders to an offscreen ping-pong target.
func (k PassKind) IsBuffer() bool { return k != PassImage }

// PassSource is one pass cut out of a combined shader blob. Body already
// includes any helper code the pass needs to compile on its own (helpers
// defined between earlier entry points are prepended, so later passes can call
// them).
type PassSource struct {
	Kind PassKind
	Body string
}

// Source is the result of splitting one shader text blob.
type Source struct {
	// Common is shared code compiled into every pass (everything before the
	// first mainImage definition in a multipass shader).
	Common string
	Passes []PassSource
}

// Multipass reports whether the source declared more than one pass.
func (s *Source) Multipass() bool { return len(s.Passes) > 1 }

var (
	entryRe  = regexp.MustCompile(`void\s+mainImage\s*\(`)
	markerRe = regexp.MustCompile(`(?i)//\s*(?:buf\w*\s*([a-d])|(image))\b`)
)

// maxPasses is four buffers plus the image pass, the Shadertoy layout.
const maxPasses = 5

// Split cuts a shader text blob into a Common section and per-pass bodies.
//
// The number of `void mainImage(...)` definitions decides the shape: zero or
// one yields a single Image pass holding the whole text, more than one yields
// a multipass layout where the text before the first definition becomes Common
// code. Pass roles come from `// Buffer A`..`// Image` comments within five
// lines above each definition; unmarked passes are assigned Buffer A..D in
// textual order with the last one as Image.
func Split(src string) (*Source, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrNilSource
	}

	entries := entryRe.FindAllStringIndex(src, -1)
	if len(entries) <= 1 {
		return &Source{
			Passes: []PassSource{{Kind: PassImage, Body: src}},
		}, nil
	}

	// Extent of each mainImage function, from the signature through its
	// matching closing brace. Text between two extents is helper code.
	type extent struct{ start, end int }
	exts := make([]extent, 0, len(entries))
	for _, e := range entries {
		end := functionEnd(src, e[0])
		exts = append(exts, extent{start: e[0], end: end})
	}

	common := src[:exts[0].start]

	passes := make([]PassSource, 0, len(exts))
	for i, ext := range exts {
		var body strings.Builder
		// Helpers defined after the first entry point and before this one.
		// Cumulative: pass N can call anything defined between passes 1..N.
		for j := 1; j <= i; j++ {
			body.WriteString(src[exts[j-1].end:exts[j].start])
		}
		body.WriteString(src[ext.start:ext.end])
		passes = append(passes, PassSource{
			Kind: PassImage, // placeholder; assigned below
			Body: body.String(),
		})
	}

	starts := make([]int, len(exts))
	for i, e := range exts {
		starts[i] = e.start
	}
	assignKinds(src, starts, passes)

	// Cap at four buffers plus one image. Overflow buffer passes in the
	// middle are dropped; the image pass is always kept.
	if len(passes) > maxPasses {
		trimmed := make([]PassSource, 0, maxPasses)
		buffers := 0
		for _, p := range passes {
			if p.Kind == PassImage {
				trimmed = append(trimmed, p)
				continue
			}
			if buffers < maxPasses-1 {
				trimmed = append(trimmed, p)
				buffers++
			}
		}
		passes = trimmed
	}

	return &Source{Common: common, Passes: passes}, nil
}

// assignKinds fills in each pass's Kind from marker comments, falling back to
// textual order (Buffer A, B, C, D, ... with the last pass as Image). Fallback
// assignment skips buffer slots already claimed by an explicit marker, so a
// partially marked shader does not produce duplicate kinds.
func assignKinds(src string, starts []int, passes []PassSource) {
	marked := make([]bool, len(passes))
	used := make(map[PassKind]bool)
	imageSeen := false

	for i, start := range starts {
		if kind, ok := markerAbove(src, start); ok {
			passes[i].Kind = kind
			marked[i] = true
			used[kind] = true
			if kind == PassImage {
				imageSeen = true
			}
		}
	}

	nextBuffer := PassBufferA
	for i := range passes {
		if marked[i] {
			continue
		}
		last := i == len(passes)-1
		if last && !imageSeen {
			passes[i].Kind = PassImage
			continue
		}
		for nextBuffer < PassBufferD && used[nextBuffer] {
			nextBuffer++
		}
		passes[i].Kind = nextBuffer
		used[nextBuffer] = true
		if nextBuffer < PassBufferD {
			nextBuffer++
		}
	}
}

// markerAbove scans up to five lines above the byte offset of an entry point
// for a pass role comment.
func markerAbove(src string, offset int) (PassKind, bool) {
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	window := src[:lineStart]
	for i := 0; i < 5; i++ {
		prev := strings.LastIndexByte(window[:max(len(window)-1, 0)], '\n') + 1
		line := window[prev:]
		if m := markerRe.FindStringSubmatch(line); m != nil {
			if m[2] != "" {
				return PassImage, true
			}
			switch strings.ToLower(m[1]) {
			case "a":
				return PassBufferA, true
			case "b":
				return PassBufferB, true
			case "c":
				return PassBufferC, true
			case "d":
				return PassBufferD, true
			}
		}
		if prev == 0 {
			break
		}
		window = window[:prev]
	}
	return 0, false
}

// functionEnd finds the end offset of the function whose signature starts at
// start, by matching braces from the first '{'. Falls back to end-of-source
// for unbalanced input.
func functionEnd(src string, start int) int {
	open := strings.IndexByte(src[start:], '{')
	if open < 0 {
		return len(src)
	}
	depth := 0
	for i := start + open; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}
