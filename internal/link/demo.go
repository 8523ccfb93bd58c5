package link

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DemoLink simulates an ELM327 adapter for development and testing.
// It answers the common AT commands and a subset of mode-01 PIDs with
// slowly varying engine data, and terminates every response with the
// ready prompt the way a real adapter does.
type DemoLink struct {
	mu        sync.Mutex
	connected bool
	rx        []byte  // pending response bytes for the bridge to poll
	t         float64 // virtual time accumulator
	echo      bool

	// Latency between command and response delivery. Zero delivers
	// synchronously, which tests rely on.
	Latency time.Duration
}

func NewDemo() *DemoLink {
	return &DemoLink{echo: true}
}

func (d *DemoLink) Name() string { return "Demo (Simulated ELM327)" }

func (d *DemoLink) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *DemoLink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	d.rx = nil
	return nil
}

func (d *DemoLink) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetConnected toggles the simulated connection state. Used to exercise the
// disconnected code path from the UI and from tests.
func (d *DemoLink) SetConnected(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = on
}

func (d *DemoLink) SendText(s string) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return fmt.Errorf("demo: not connected")
	}
	cmd := strings.TrimSpace(s)
	// A real adapter echoes the ATE0 command itself; echo takes effect on
	// the next command, so sample the flag before interpreting.
	echo := d.echo
	resp := d.respond(cmd)
	if echo {
		resp = cmd + "\r" + resp
	}
	latency := d.Latency
	d.mu.Unlock()

	deliver := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.connected {
			return
		}
		d.rx = append(d.rx, resp...)
	}
	if latency > 0 {
		time.AfterFunc(latency, deliver)
	} else {
		deliver()
	}
	return nil
}

func (d *DemoLink) Available() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rx)
}

func (d *DemoLink) Read(max int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if max > len(d.rx) {
		max = len(d.rx)
	}
	out := make([]byte, max)
	copy(out, d.rx[:max])
	d.rx = d.rx[max:]
	return out, nil
}

// respond builds the reply for one command, prompt included.
// Caller holds d.mu.
func (d *DemoLink) respond(cmd string) string {
	c := strings.ToUpper(strings.ReplaceAll(cmd, " ", ""))

	if strings.HasPrefix(c, "AT") {
		switch {
		case c == "ATZ":
			return "\r\rELM327 v1.5\r\r>"
		case c == "ATI":
			return "ELM327 v1.5\r\r>"
		case c == "ATRV":
			return fmt.Sprintf("%.1fV\r\r>", 13.8+rand.Float64()*0.4)
		case c == "ATDP":
			return "AUTO, ISO 15765-4 (CAN 11/500)\r\r>"
		case c == "ATE0":
			d.echo = false
			return "OK\r\r>"
		case c == "ATE1":
			d.echo = true
			return "OK\r\r>"
		case strings.HasPrefix(c, "ATL"), strings.HasPrefix(c, "ATS"),
			strings.HasPrefix(c, "ATH"), strings.HasPrefix(c, "ATAT"),
			strings.HasPrefix(c, "ATM"), strings.HasPrefix(c, "ATCAF"):
			return "OK\r\r>"
		default:
			return "?\r\r>"
		}
	}

	if strings.HasPrefix(c, "01") {
		return d.mode01(c)
	}

	return "NO DATA\r\r>"
}

// mode01 answers current-data PID requests with simulated engine values.
func (d *DemoLink) mode01(c string) string {
	d.t += 0.25

	// RPM cycles between idle and revving, like a car being blipped
	// in the driveway.
	rpmBase := 850.0 + 4000.0*math.Sin(d.t*0.3)*math.Sin(d.t*0.3)
	rpm := rpmBase + rand.Float64()*50
	tps := (rpm - 850) / (8000 - 850) * 100
	if tps < 0 {
		tps = 0
	}
	speed := tps / 100 * 220

	switch c {
	case "0100":
		return "41 00 BE 3F A8 13 \r\r>"
	case "0105": // coolant temp, offset 40
		return fmt.Sprintf("41 05 %02X \r\r>", int(88+rand.Float64()*4)+40)
	case "010C": // rpm, quarter-revs big-endian
		v := int(rpm * 4)
		return fmt.Sprintf("41 0C %02X %02X \r\r>", v>>8, v&0xFF)
	case "010D": // vehicle speed km/h
		return fmt.Sprintf("41 0D %02X \r\r>", int(speed))
	case "010F": // intake air temp
		return fmt.Sprintf("41 0F %02X \r\r>", int(30+rand.Float64()*8)+40)
	case "0111": // throttle position
		return fmt.Sprintf("41 11 %02X \r\r>", int(tps/100*255))
	case "011C":
		return "41 1C 06 \r\r>"
	default:
		return "NO DATA\r\r>"
	}
}
