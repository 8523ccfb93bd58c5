package link

// Link is the interface for the serial-side transport the bridge forwards
// commands to. SerialLink is the real implementation; DemoLink provides
// simulated ELM327 behavior for development without hardware.
type Link interface {
	// Name returns the human-readable name of this link.
	Name() string
	// Connect opens the underlying transport and verifies it is usable.
	Connect() error
	// Close cleanly shuts down the transport.
	Close() error
	// IsConnected returns whether the link currently has a live connection.
	IsConnected() bool

	// SendText writes a command string to the transport.
	SendText(s string) error
	// Available returns how many received bytes are waiting to be read.
	Available() int
	// Read returns up to max waiting bytes. It never blocks; if nothing is
	// available it returns an empty slice.
	Read(max int) ([]byte, error)
}
