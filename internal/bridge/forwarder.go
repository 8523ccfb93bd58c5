package bridge

import (
	"log"
	"strings"
	"time"

	"elmbridge/internal/link"
)

// Protocol literals written back to the client. Every response ends with the
// ELM327 ready prompt so OBD apps never stall waiting for it.
const (
	respBusy         = "BUSY\r\n"
	respNoConnection = "NO BLUETOOTH CONNECTION\r\n>"
	respError        = "ERROR\r\n>"

	promptMarker = ">"
)

// Forwarder bridges one extracted command onto the serial link and collects
// the adapter's response. Calls are strictly sequential per session: the
// read loop never dispatches command N+1 before command N's response has
// been written back.
type Forwarder struct {
	link link.Link

	// Collector timing. Defaults match ELM327 adapter behavior; tests
	// shorten them.
	Timeout      time.Duration // ceiling for one response
	PollInterval time.Duration // sleep between empty polls
	TrailingWait time.Duration // grace after the prompt for stragglers
}

const (
	defaultTimeout      = 5000 * time.Millisecond
	defaultPollInterval = 20 * time.Millisecond
	defaultTrailingWait = 50 * time.Millisecond
)

func NewForwarder(l link.Link) *Forwarder {
	return &Forwarder{
		link:         l,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
		TrailingWait: defaultTrailingWait,
	}
}

// Forward sends one command and returns the text to write to the client.
// Failures stay in-protocol: a dead link yields NO BLUETOOTH CONNECTION, any
// other transport failure yields ERROR. The session is never torn down from
// here.
func (f *Forwarder) Forward(command string) string {
	if !f.link.IsConnected() {
		return respNoConnection
	}
	if err := f.link.SendText(command + "\r"); err != nil {
		log.Printf("[forward] send %q failed: %v", command, err)
		return respError
	}
	resp, err := f.collect()
	if err != nil {
		log.Printf("[forward] collect for %q failed: %v", command, err)
		return respError
	}
	return resp
}

// collect polls the link until the accumulated response contains the ready
// prompt or the ceiling elapses. Once the prompt shows up, one more read
// pass after a short grace period captures trailing bytes, then the
// response is returned immediately.
func (f *Forwarder) collect() (string, error) {
	var acc strings.Builder
	deadline := time.Now().Add(f.Timeout)

	for time.Now().Before(deadline) {
		n := f.link.Available()
		if n == 0 {
			time.Sleep(f.PollInterval)
			continue
		}
		data, err := f.link.Read(n)
		if err != nil {
			return "", err
		}
		acc.Write(data)

		if strings.Contains(acc.String(), promptMarker) {
			time.Sleep(f.TrailingWait)
			if m := f.link.Available(); m > 0 {
				tail, err := f.link.Read(m)
				if err != nil {
					return "", err
				}
				acc.Write(tail)
			}
			return acc.String(), nil
		}
	}

	// Timed out without seeing the prompt. Hand back whatever arrived,
	// synthesizing the prompt so the client parser does not stall.
	s := acc.String()
	if !strings.HasSuffix(s, promptMarker) {
		s += "\r\n" + promptMarker
	}
	return s, nil
}
