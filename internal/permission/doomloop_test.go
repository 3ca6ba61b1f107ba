package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoomLoopTripsAtThreshold(t *testing.T) {
	d := NewDoomLoopDetector()

	input := map[string]any{"command": "ls"}
	assert.False(t, d.Check("s1", "bash", input))
	assert.False(t, d.Check("s1", "bash", input))
	assert.True(t, d.Check("s1", "bash", input))
}

func TestDoomLoopDifferentInputBreaksRun(t *testing.T) {
	d := NewDoomLoopDetector()

	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.False(t, d.Check("s1", "bash", "pwd"))
	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.True(t, d.Check("s1", "bash", "ls"))
}

func TestDoomLoopSessionsIsolated(t *testing.T) {
	d := NewDoomLoopDetector()

	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.False(t, d.Check("s2", "bash", "ls"))
	assert.False(t, d.Check("s1", "bash", "ls"))
	assert.False(t, d.Check("s2", "bash", "ls"))
	assert.True(t, d.Check("s1", "bash", "ls"))
}

func TestDoomLoopDifferentToolSameInput(t *testing.T) {
	d := NewDoomLoopDetector()

	assert.False(t, d.Check("s1", "bash", "x"))
	assert.False(t, d.Check("s1", "read", "x"))
	assert.False(t, d.Check("s1", "bash", "x"))
	assert.False(t, d.Check("s1", "read", "x"))
}

func TestDoomLoopClear(t *testing.T) {
	d := NewDoomLoopDetector()

	d.Check("s1", "bash", "ls")
	d.Check("s1", "bash", "ls")
	d.Clear("s1")
	assert.False(t, d.Check("s1", "bash", "ls"))
}
