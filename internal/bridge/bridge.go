package bridge

import (
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"elmbridge/internal/link"
	"elmbridge/internal/netinfo"
)

// DefaultPort is the TCP port ELM327 WiFi adapters conventionally listen on.
const DefaultPort = 35000

// StatusFunc is notified on start/stop/connect/disconnect. client is the
// remote address of the connected OBD app, or "" when none is connected.
// The slot is single and overwritable; the last registered function wins.
type StatusFunc func(running bool, client string)

// Exchange is one completed command/response cycle, handed to the Recorder.
type Exchange struct {
	Client   string        `json:"client"`
	Command  string        `json:"command"`
	Response string        `json:"response"`
	Duration time.Duration `json:"-"`
	Stamp    time.Time     `json:"-"`
}

// Recorder receives every completed exchange. Implemented by the CSV logger
// and the status monitor.
type Recorder interface {
	Record(ex Exchange)
}

// Bridge accepts a single OBD app over TCP and forwards its commands to the
// serial link. It owns the start/stop lifecycle, the one-client accept
// policy, and status notifications.
type Bridge struct {
	link link.Link

	mu         sync.Mutex
	running    bool
	port       int
	ln         net.Listener
	client     net.Conn
	clientAddr string
	status     StatusFunc
	rec        Recorder
}

func New(l link.Link) *Bridge {
	return &Bridge{link: l}
}

// SetStatusFunc registers the status callback, replacing any previous one.
func (b *Bridge) SetStatusFunc(fn StatusFunc) {
	b.mu.Lock()
	b.status = fn
	b.mu.Unlock()
}

// SetRecorder registers the exchange recorder, replacing any previous one.
func (b *Bridge) SetRecorder(r Recorder) {
	b.mu.Lock()
	b.rec = r
	b.mu.Unlock()
}

// Start binds a TCP listener on all interfaces at port (DefaultPort if 0 or
// negative) and begins accepting. Idempotent: if already running it returns
// true without rebinding. On bind failure it logs and returns false and the
// bridge stays stopped.
func (b *Bridge) Start(port int) bool {
	if port <= 0 {
		port = DefaultPort
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return true
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		b.mu.Unlock()
		log.Printf("[bridge] bind on port %d failed: %v", port, err)
		return false
	}
	b.ln = ln
	b.port = port
	b.running = true
	b.mu.Unlock()

	go b.acceptLoop(ln)

	log.Printf("[bridge] listening on port %d", port)
	b.notify(true, "")
	return true
}

// Stop disconnects any active client, closes the listener, and resets state.
// Safe to call when not running.
func (b *Bridge) Stop() {
	b.mu.Lock()
	ln := b.ln
	client := b.client
	b.ln = nil
	b.client = nil
	b.clientAddr = ""
	b.running = false
	b.port = 0
	b.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if ln != nil {
		ln.Close()
		log.Printf("[bridge] stopped")
	}
	b.notify(false, "")
}

// IsRunning reports whether the listener is bound and accepting.
func (b *Bridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Port returns the bound port, or 0 when stopped.
func (b *Bridge) Port() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port
}

// ClientAddress returns the connected client's remote address, or "".
func (b *Bridge) ClientAddress() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clientAddr
}

// ConnectionInfo builds the human-readable "connect here" string shown in
// the UI. Address discovery failures degrade to a port-only message and
// never affect the bridge itself.
func (b *Bridge) ConnectionInfo() string {
	b.mu.Lock()
	running := b.running
	port := b.port
	client := b.clientAddr
	b.mu.Unlock()

	if !running {
		return "bridge stopped"
	}
	if client != "" {
		return fmt.Sprintf("client connected: %s", client)
	}
	addrs := netinfo.CandidateAddresses()
	if len(addrs) == 0 {
		return fmt.Sprintf("listening on port %d", port)
	}
	hosts := make([]string, len(addrs))
	for i, a := range addrs {
		hosts[i] = fmt.Sprintf("%s:%d", a, port)
	}
	return "connect to " + strings.Join(hosts, " or ")
}

// acceptLoop runs until the listener is closed by Stop. A connection that
// arrives while a session exists is answered with BUSY and closed; the
// existing session is untouched.
func (b *Bridge) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed
		}

		b.mu.Lock()
		busy := b.client != nil
		if !busy {
			b.client = conn
			b.clientAddr = conn.RemoteAddr().String()
		}
		b.mu.Unlock()

		if busy {
			log.Printf("[bridge] rejecting %s: client already connected", conn.RemoteAddr())
			conn.Write([]byte(respBusy))
			conn.Close()
			continue
		}

		log.Printf("[bridge] client connected: %s", conn.RemoteAddr())
		b.notify(true, conn.RemoteAddr().String())
		go b.serveClient(conn)
	}
}

// serveClient runs the session read loop: bytes in, framed command out,
// forward cycle, response written back. Strictly sequential, so the link
// never sees two exchanges in flight.
func (b *Bridge) serveClient(conn net.Conn) {
	framer := NewFramer()
	fwd := NewForwarder(b.link)

	defer func() {
		framer.Reset()
		conn.Close()

		b.mu.Lock()
		stillRunning := b.running
		if b.client == conn {
			b.client = nil
			b.clientAddr = ""
		}
		b.mu.Unlock()

		log.Printf("[bridge] client disconnected: %s", conn.RemoteAddr())
		if stillRunning {
			b.notify(true, "")
		}
	}()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		cmd, ok := framer.Push(buf[:n])
		if !ok {
			continue
		}

		started := time.Now()
		resp := fwd.Forward(cmd)
		b.record(Exchange{
			Client:   conn.RemoteAddr().String(),
			Command:  cmd,
			Response: resp,
			Duration: time.Since(started),
			Stamp:    started,
		})

		// A write to a socket Stop already closed just errors out here.
		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
	}
}

func (b *Bridge) notify(running bool, client string) {
	b.mu.Lock()
	fn := b.status
	b.mu.Unlock()
	if fn != nil {
		fn(running, client)
	}
}

func (b *Bridge) record(ex Exchange) {
	b.mu.Lock()
	r := b.rec
	b.mu.Unlock()
	if r != nil {
		r.Record(ex)
	}
}
