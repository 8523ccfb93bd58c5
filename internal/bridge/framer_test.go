package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramerSingleCommand(t *testing.T) {
	f := NewFramer()

	cmd, ok := f.Push([]byte("ATZ\r"))
	assert.True(t, ok)
	assert.Equal(t, "ATZ", cmd)
}

func TestFramerSplitAcrossPushes(t *testing.T) {
	f := NewFramer()

	cmd, ok := f.Push([]byte("AT"))
	assert.False(t, ok, "no terminator yet")
	assert.Empty(t, cmd)

	cmd, ok = f.Push([]byte("Z\r"))
	assert.True(t, ok)
	assert.Equal(t, "ATZ", cmd)
}

func TestFramerTrimsWhitespace(t *testing.T) {
	f := NewFramer()

	cmd, ok := f.Push([]byte("  01 0C \r\n"))
	assert.True(t, ok)
	assert.Equal(t, "01 0C", cmd)
}

func TestFramerBlankLineIgnored(t *testing.T) {
	f := NewFramer()

	_, ok := f.Push([]byte("\r\n"))
	assert.False(t, ok)

	// Buffer was cleared; the next command comes through clean.
	cmd, ok := f.Push([]byte("ATI\r"))
	assert.True(t, ok)
	assert.Equal(t, "ATI", cmd)
}

func TestFramerAcceptsLoneLF(t *testing.T) {
	f := NewFramer()

	cmd, ok := f.Push([]byte("ATRV\n"))
	assert.True(t, ok)
	assert.Equal(t, "ATRV", cmd)
}

// Pipelined commands arriving in one chunk are concatenated into a single
// command. This matches deployed adapter behavior and is intentionally not
// corrected; OBD apps wait for the prompt before sending the next command.
func TestFramerPipelinedCommandsMerge(t *testing.T) {
	f := NewFramer()

	cmd, ok := f.Push([]byte("ATE0\rATL0\r"))
	assert.True(t, ok)
	assert.Equal(t, "ATE0ATL0", cmd)
}

func TestFramerReset(t *testing.T) {
	f := NewFramer()

	_, ok := f.Push([]byte("AT"))
	assert.False(t, ok)

	f.Reset()

	cmd, ok := f.Push([]byte("Z\r"))
	assert.True(t, ok)
	assert.Equal(t, "Z", cmd, "partial command discarded by Reset")
}
