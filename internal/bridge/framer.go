package bridge

import (
	"bytes"
	"strings"
)

// Framer accumulates inbound client bytes and extracts one terminator-
// delimited command at a time. One Framer exists per client session and is
// only touched from that session's read loop, so it needs no locking.
type Framer struct {
	buf []byte
}

func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 64)}
}

// Push appends a chunk and, if the buffer now holds a CR or LF, flushes it:
// every CR/LF in the whole buffer is stripped, the remainder is trimmed, and
// the buffer is cleared. The trimmed command is returned with ok=true when
// non-empty.
//
// Stripping terminators from the whole buffer means commands pipelined ahead
// of a flush get concatenated into one. That matches how ELM327 WiFi
// adapters in the field behave with OBD apps (which wait for the prompt
// before sending the next command), so it is kept as-is.
func (f *Framer) Push(chunk []byte) (cmd string, ok bool) {
	f.buf = append(f.buf, chunk...)
	if !bytes.ContainsAny(f.buf, "\r\n") {
		return "", false
	}

	s := string(f.buf)
	f.buf = f.buf[:0]

	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Reset discards any partially buffered command. Called on session teardown.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
