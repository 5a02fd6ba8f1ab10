package shaderpaper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_DebugToggle(t *testing.T) {
	l := NewDefaultLogger(false)
	assert.False(t, l.DebugEnabled())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())

	l.SetDebug(false)
	assert.False(t, l.DebugEnabled())
}

func TestNopLogger_IsSilentAndSafe(t *testing.T) {
	l := NewNopLogger()
	assert.False(t, l.DebugEnabled())

	// Must be callable without side effects or panics.
	l.SetDebug(true)
	l.Debugf("d %d", 1)
	l.Infof("i")
	l.Warnf("w")
	l.Errorf("e %v", nil)
	assert.False(t, l.DebugEnabled())
}
