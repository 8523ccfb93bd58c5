package link

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialLink implements Link on top of a serial tty. For a Bluetooth SPP
// vehicle adapter this is typically an rfcomm binding (e.g. /dev/rfcomm0);
// a USB ELM327 clone shows up as /dev/ttyUSB0.
//
// A dedicated reader goroutine drains the port into an internal receive
// buffer, so Available/Read give the bridge a non-blocking view of whatever
// the adapter has produced so far.
type SerialLink struct {
	portPath string
	baudRate int

	mu        sync.Mutex
	port      serial.Port
	connected bool
	rx        []byte // bytes received but not yet consumed
}

// SerialConfig holds connection configuration for the serial link.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

const (
	// readTimeout keeps the reader goroutine responsive to Close without
	// spinning: Read returns n=0 after this long with no data.
	readTimeout = 100 * time.Millisecond

	rxChunkSize = 256
)

// NewSerial creates a serial link for the given port. 38400 baud is the
// ELM327 default when no rate is configured.
func NewSerial(cfg SerialConfig) *SerialLink {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 38400
	}
	return &SerialLink{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

func (l *SerialLink) Name() string { return "Serial" }

// Connect opens the serial port and starts the reader goroutine.
func (l *SerialLink) Connect() error {
	mode := &serial.Mode{
		BaudRate: l.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(l.portPath, mode)
	if err != nil {
		return fmt.Errorf("link: failed to open %s: %w", l.portPath, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("link: failed to set timeout: %w", err)
	}
	port.ResetInputBuffer()

	l.mu.Lock()
	l.port = port
	l.connected = true
	l.rx = l.rx[:0]
	l.mu.Unlock()

	go l.readLoop(port)

	log.Printf("[link] opened %s at %d baud", l.portPath, l.baudRate)
	return nil
}

// readLoop drains the port into the receive buffer until a read error
// (device unplugged, rfcomm dropped, port closed).
func (l *SerialLink) readLoop(port serial.Port) {
	buf := make([]byte, rxChunkSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			l.mu.Lock()
			l.rx = append(l.rx, buf[:n]...)
			l.mu.Unlock()
		}
		if err != nil {
			l.mu.Lock()
			stillCurrent := l.port == port
			if stillCurrent {
				l.connected = false
			}
			l.mu.Unlock()
			if stillCurrent {
				log.Printf("[link] read loop ended on %s: %v", l.portPath, err)
			}
			return
		}
	}
}

func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	if l.port != nil {
		err := l.port.Close()
		l.port = nil
		return err
	}
	return nil
}

func (l *SerialLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *SerialLink) SendText(s string) error {
	l.mu.Lock()
	port := l.port
	connected := l.connected
	l.mu.Unlock()

	if !connected || port == nil {
		return errors.New("link: not connected")
	}
	if _, err := port.Write([]byte(s)); err != nil {
		return fmt.Errorf("link: write failed: %w", err)
	}
	return nil
}

func (l *SerialLink) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rx)
}

func (l *SerialLink) Read(max int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if max > len(l.rx) {
		max = len(l.rx)
	}
	out := make([]byte, max)
	copy(out, l.rx[:max])
	l.rx = l.rx[max:]
	return out, nil
}
