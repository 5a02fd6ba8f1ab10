package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// Binding says what one of a pass's four iChannel slots samples from.
type Binding int

const (
	BindNone Binding = iota
	BindNoise
	BindBufferA
	BindBufferB
	BindBufferC
	BindBufferD
	BindSelf
	BindExternal
)

func (b Binding) String() string {
	switch b {
	case BindNone:
		return "none"
	case BindNoise:
		return "noise"
	case BindBufferA:
		return "buffer A"
	case BindBufferB:
		return "buffer B"
	case BindBufferC:
		return "buffer C"
	case BindBufferD:
		return "buffer D"
	case BindSelf:
		return "self"
	case BindExternal:
		return "external"
	}
	return "unknown"
}

// BufferIndex maps BindBufferA..D to 0..3; -1 for anything else.
func (b Binding) BufferIndex() int {
	if b >= BindBufferA && b <= BindBufferD {
		return int(b - BindBufferA)
	}
	return -1
}

// Scoring weights for the channel classifier. Shadertoy shaders carry no
// binding declarations, so each channel's role is inferred from how the code
// around each iChannelN reference looks. Tuned against common shader idioms;
// wrong guesses degrade the picture, they never break execution.
const (
	weightNoiseDivisor   = 30 // texture(ch, p/256.0) style lookups
	weightNoiseTinyMul   = 20 // coordinates scaled by tiny constants
	weightNoiseSwizzle   = 25 // only .x/.r of the sample is used
	weightNoiseKeyword   = 15 // fract/hash/noise near the reference
	weightBufferCoord    = 40 // fragCoord or iResolution in the lookup
	weightBufferBareUV   = 25 // a bare uv/coord/pos argument
	weightSelfMix        = 40 // mix(..., texture(chN, ...), ...) blending
	weightSelfAccumulate = 30 // +=, *= feedback accumulation on the line

	// noiseDominant is the score a channel must reach, while beating the
	// buffer and self scores, to be classified as procedural noise.
	noiseDominant = 50
)

// contextRadius is how many bytes around an iChannelN reference are inspected.
const contextRadius = 120

var (
	noiseDivisorRe = regexp.MustCompile(`/\s*(?:256|512|1024)(?:\.\d*)?\b`)
	noiseTinyMulRe = regexp.MustCompile(`\*\s*0?\.0\d+`)
	noiseKeywordRe = regexp.MustCompile(`\b(?:fract|hash|noise)\s*\(`)
	bareUVRe       = regexp.MustCompile(`,\s*(?:uv|coord|pos|p|st)\b`)
)

// channelScores holds the three independent confidence scores for one channel.
type channelScores struct {
	noise  int
	buffer int
	self   int
	refs   int
}

// ResolveChannels classifies the four channel inputs of one pass.
//
// The Image pass is never scored: its channels are the outputs of Buffer A-D
// in fixed order (BindNone where the buffer does not exist). Buffer passes get
// the heuristic treatment described on the weight constants above.
func ResolveChannels(p PassSource, presentBuffers [4]bool) [4]Binding {
	var out [4]Binding
	if p.Kind == PassImage {
		for i := 0; i < 4; i++ {
			if presentBuffers[i] {
				out[i] = BindBufferA + Binding(i)
			} else {
				out[i] = BindNone
			}
		}
		return out
	}
	for i := 0; i < 4; i++ {
		out[i] = classifyChannel(p.Body, i)
	}
	return out
}

// classifyChannel scores one iChannelN slot of a buffer pass body.
func classifyChannel(body string, channel int) Binding {
	s := scoreChannel(body, channel)

	// Unused channel: noise is the safe default, sampling it cannot read
	// stale or out-of-order data.
	if s.refs == 0 {
		return BindNoise
	}

	if s.noise >= noiseDominant && s.noise > s.buffer && s.noise > s.self {
		return BindNoise
	}

	// Shadertoy convention: channel 0 on a buffer pass is almost always the
	// pass's own previous frame. A strong noise score still reads as a noise
	// lookup, even when screen-space signals keep it from being strictly
	// dominant.
	if channel == 0 {
		if s.noise >= noiseDominant {
			return BindNoise
		}
		return BindSelf
	}

	// Referenced with buffer or self signals (or no strong signal at all):
	// pick self vs. buffer by score, mapping the channel index to a buffer
	// when ambiguous (1->A, 2->B, 3->C).
	fallback := BindBufferA + Binding(channel-1)
	if s.self > s.buffer {
		return BindSelf
	}
	return fallback
}

// scoreChannel computes the three confidence scores for one channel by
// pattern-matching a fixed-size context window around every reference.
func scoreChannel(body string, channel int) channelScores {
	var s channelScores
	needle := fmt.Sprintf("iChannel%d", channel)

	for at := 0; ; {
		idx := strings.Index(body[at:], needle)
		if idx < 0 {
			break
		}
		idx += at
		s.refs++

		lo := idx - contextRadius
		if lo < 0 {
			lo = 0
		}
		hi := idx + len(needle) + contextRadius
		if hi > len(body) {
			hi = len(body)
		}
		window := body[lo:hi]
		line := lineAround(body, idx)

		if noiseDivisorRe.MatchString(window) {
			s.noise += weightNoiseDivisor
		}
		if noiseTinyMulRe.MatchString(window) {
			s.noise += weightNoiseTinyMul
		}
		if sampledSingleComponent(body, idx, needle) {
			s.noise += weightNoiseSwizzle
		}
		if noiseKeywordRe.MatchString(window) {
			s.noise += weightNoiseKeyword
		}

		if strings.Contains(window, "fragCoord") || strings.Contains(window, "iResolution") {
			s.buffer += weightBufferCoord
		}
		if bareUVRe.MatchString(window) {
			s.buffer += weightBufferBareUV
		}

		if mixWraps(line, needle) {
			s.self += weightSelfMix
		}
		if strings.Contains(line, "+=") || strings.Contains(line, "*=") {
			s.self += weightSelfAccumulate
		}

		at = idx + len(needle)
	}
	return s
}

// sampledSingleComponent reports whether the texture() call containing this
// reference has only its .x or .r component consumed.
func sampledSingleComponent(body string, refIdx int, needle string) bool {
	rest := body[refIdx+len(needle):]
	rp := strings.IndexByte(rest, ')')
	if rp < 0 || rp+2 >= len(rest) {
		return false
	}
	if rest[rp+1] != '.' {
		return false
	}
	c := rest[rp+2]
	if c != 'x' && c != 'r' {
		return false
	}
	// Reject multi-component swizzles like .xy or .rgb.
	if rp+3 < len(rest) {
		n := rest[rp+3]
		if (n >= 'a' && n <= 'z') || (n >= 'A' && n <= 'Z') {
			return false
		}
	}
	return true
}

// mixWraps reports whether the reference sits inside a mix(...) call on its
// line, the usual temporal blending idiom for feedback.
func mixWraps(line, needle string) bool {
	mi := strings.Index(line, "mix")
	if mi < 0 {
		return false
	}
	ri := strings.Index(line, needle)
	return ri > mi
}

// lineAround returns the full source line containing byte offset idx.
func lineAround(body string, idx int) string {
	start := strings.LastIndexByte(body[:idx], '\n') + 1
	end := strings.IndexByte(body[idx:], '\n')
	if end < 0 {
		return body[start:]
	}
	return body[start : idx+end]
}
