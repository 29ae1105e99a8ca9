// Package clientip derives a best-effort public client address from proxy
// headers and the socket peer.
package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unknown is returned when neither headers nor the peer address yield anything.
const Unknown = "0.0.0.0"

// headerPriority is scanned in order; the first public address wins.
var headerPriority = []string{
	"Client-Ip",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-Ip",
	"Forwarded-For",
	"Forwarded",
}

// Ranges that net/netip has no predicate for.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("100::/64"),
}

// Resolve never fails. Header candidates must be public unicast addresses;
// the peer address is taken as-is because it cannot be spoofed.
func Resolve(h http.Header, remoteAddr string) string {
	for _, name := range headerPriority {
		for _, raw := range h.Values(name) {
			for _, part := range strings.Split(raw, ",") {
				if addr, ok := parseCandidate(part); ok && IsPublic(addr) {
					return addr.Unmap().String()
				}
			}
		}
	}

	if ip := peerIP(remoteAddr); ip != "" {
		return ip
	}
	return Unknown
}

// IsPublic reports whether addr is outside private and reserved ranges.
func IsPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() ||
		addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// parseCandidate accepts bare addresses as well as RFC 7239 "for=" pairs,
// quoted or bracketed, with or without a port.
func parseCandidate(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ";") {
		// Forwarded: for=1.2.3.4;proto=https
		for _, pair := range strings.Split(s, ";") {
			pair = strings.TrimSpace(pair)
			if len(pair) > 4 && strings.EqualFold(pair[:4], "for=") {
				s = pair
				break
			}
		}
	}
	if len(s) > 4 && strings.EqualFold(s[:4], "for=") {
		s = s[4:]
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return netip.Addr{}, false
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr, true
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr(), true
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr, true
	}
	return netip.Addr{}, false
}

func peerIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP (e.g. a unix socket peer); report it as given.
		return strings.TrimSpace(host)
	}
	return addr.Unmap().String()
}
