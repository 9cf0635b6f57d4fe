package access

import (
	"net"
	"strings"
)

// InsideNetwork reports whether an address belongs to the trusted hospital
// network. Loopback and the private ranges 10.*, 172.* and 192.168.* count
// as inside. Empty or unparseable addresses also classify as inside; this
// fail-open default is a development convenience carried over deliberately
// and should be revisited before exposing the service outside a trusted
// perimeter.
func InsideNetwork(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return true
	}

	// Strip a port if one is attached (RemoteAddr is host:port).
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		return true
	}

	if addr.IsLoopback() {
		return true
	}

	v4 := addr.To4()
	if v4 == nil {
		return false
	}

	switch {
	case v4[0] == 10:
		return true
	case v4[0] == 172:
		return true
	case v4[0] == 192 && v4[1] == 168:
		return true
	}

	return false
}
