package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink is a scriptable Link for forwarder tests: each SendText makes the
// next queued reply available for polling.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	sent      []string
	queue     [][]byte // successive poll results
}

func (f *fakeLink) Name() string      { return "fake" }
func (f *fakeLink) Connect() error    { f.connected = true; return nil }
func (f *fakeLink) Close() error      { f.connected = false; return nil }
func (f *fakeLink) IsConnected() bool { return f.connected }

func (f *fakeLink) SendText(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeLink) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return 0
	}
	return len(f.queue[0])
}

func (f *fakeLink) Read(max int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	head := f.queue[0]
	if max >= len(head) {
		f.queue = f.queue[1:]
		return head, nil
	}
	f.queue[0] = head[max:]
	return head[:max], nil
}

// newTestForwarder shortens the collector timings so tests stay fast.
func newTestForwarder(l *fakeLink) *Forwarder {
	fwd := NewForwarder(l)
	fwd.Timeout = 200 * time.Millisecond
	fwd.PollInterval = 5 * time.Millisecond
	fwd.TrailingWait = 10 * time.Millisecond
	return fwd
}

func TestForwardDisconnectedLink(t *testing.T) {
	l := &fakeLink{connected: false}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("ATZ")

	assert.Equal(t, "NO BLUETOOTH CONNECTION\r\n>", resp)
	assert.Empty(t, l.sent, "transport must not be touched when disconnected")
}

func TestForwardAppendsCarriageReturn(t *testing.T) {
	l := &fakeLink{connected: true, queue: [][]byte{[]byte("OK\r\r>")}}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("ATE0")

	require.Equal(t, []string{"ATE0\r"}, l.sent)
	assert.Equal(t, "OK\r\r>", resp)
}

func TestForwardPromptInSingleRead(t *testing.T) {
	l := &fakeLink{connected: true, queue: [][]byte{[]byte("41 0C 1A F8>")}}
	fwd := newTestForwarder(l)

	started := time.Now()
	resp := fwd.Forward("010C")
	elapsed := time.Since(started)

	assert.Equal(t, "41 0C 1A F8>", resp)
	assert.Less(t, elapsed, 100*time.Millisecond,
		"must return right after the grace check, not wait out the ceiling")
}

func TestForwardCapturesTrailingBytes(t *testing.T) {
	l := &fakeLink{connected: true, queue: [][]byte{
		[]byte("41 0D 3C\r\r>"),
		[]byte("\r"), // straggler arriving just after the prompt
	}}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("010D")

	assert.Equal(t, "41 0D 3C\r\r>\r", resp)
}

func TestForwardTimeoutSynthesizesPrompt(t *testing.T) {
	l := &fakeLink{connected: true, queue: [][]byte{[]byte("SEARCHING...")}}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("0100")

	assert.Equal(t, "SEARCHING...\r\n>", resp)
}

func TestForwardTimeoutNoData(t *testing.T) {
	l := &fakeLink{connected: true}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("0100")

	assert.Equal(t, "\r\n>", resp)
}

func TestForwardSendFailure(t *testing.T) {
	l := &fakeLink{connected: true, sendErr: errors.New("tty gone")}
	fwd := newTestForwarder(l)

	resp := fwd.Forward("ATZ")

	assert.Equal(t, "ERROR\r\n>", resp)
}
