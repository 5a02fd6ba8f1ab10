package renderer

import (
	"fmt"
	"strings"
	"time"
)

// Profiler collects per-pass CPU submission timings for one frame. Scopes keep
// insertion order so overlay output is stable frame to frame.
type Profiler struct {
	scopes map[string]time.Duration
	starts map[string]time.Time
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]time.Duration),
		starts: make(map[string]time.Time),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.starts[name] = time.Now()
	if _, known := p.scopes[name]; !known {
		p.order = append(p.order, name)
	}
	p.scopes[name] = 0
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.starts[name]; ok {
		p.scopes[name] = time.Since(start)
	}
}

// Scope returns the last recorded duration for a scope, 0 if unknown.
func (p *Profiler) Scope(name string) time.Duration { return p.scopes[name] }

// StatsString formats the last frame's scope timings for a telemetry overlay.
func (p *Profiler) StatsString() string {
	var sb strings.Builder
	sb.WriteString("pass timings (CPU submit):\n")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-10s %.2f ms\n", name, ms)
	}
	return sb.String()
}
