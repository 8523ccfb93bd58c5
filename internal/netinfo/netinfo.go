// Package netinfo enumerates local IPv4 addresses for operator display.
// It has no protocol role; the bridge listens on all interfaces regardless.
package netinfo

import (
	"net"
	"strings"
)

// wirelessPrefixes are interface name patterns that usually carry the WiFi
// address an OBD app on a phone can actually reach (wlan0 on Linux, ap0 /
// swlan0 for hotspot mode, wlp2s0 style on systemd naming).
var wirelessPrefixes = []string{"wlan", "wlp", "wifi", "ap", "swlan", "wl"}

// CandidateAddresses returns non-loopback IPv4 addresses, preferring
// wireless-looking interfaces and falling back to all non-loopback addresses
// when none match. Any failure returns nil; callers treat that as "no
// addresses to show".
func CandidateAddresses() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var wireless, all []string
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			all = append(all, ip4.String())
			if isWireless(ifc.Name) {
				wireless = append(wireless, ip4.String())
			}
		}
	}

	if len(wireless) > 0 {
		return wireless
	}
	return all
}

func isWireless(name string) bool {
	n := strings.ToLower(name)
	for _, p := range wirelessPrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}
