package netinfo

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateAddressesAreIPv4(t *testing.T) {
	for _, addr := range CandidateAddresses() {
		ip := net.ParseIP(addr)
		assert.NotNil(t, ip, "candidate %q must parse as an IP", addr)
		assert.NotNil(t, ip.To4(), "candidate %q must be IPv4", addr)
		assert.False(t, ip.IsLoopback(), "loopback %q must be filtered", addr)
	}
}

func TestIsWireless(t *testing.T) {
	wireless := []string{"wlan0", "wlp2s0", "wifi0", "ap0", "swlan0", "wl0"}
	for _, name := range wireless {
		assert.True(t, isWireless(name), name)
	}

	wired := []string{"eth0", "enp3s0", "lo", "docker0", "br0"}
	for _, name := range wired {
		assert.False(t, isWireless(name), name)
	}
}
