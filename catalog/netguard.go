package catalog

import (
	"errors"
	"net"
)

// ErrPrivateAddress is returned when a guarded fetcher would connect to a
// non-public address.
var ErrPrivateAddress = errors.New("connection to private address is not allowed")

var (
	cgnat    = mustParseCIDR("100.64.0.0/10")
	v6unique = mustParseCIDR("fc00::/7")
	v6link   = mustParseCIDR("fe80::/10")
)

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic("invalid CIDR " + s + ": " + err.Error())
	}
	return n
}

// IsPrivateIP reports whether ip is loopback, private, link-local,
// unspecified or carrier-grade NAT. IPv4-mapped IPv6 addresses are checked
// as IPv4.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}
