package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// checked in order, the first public address wins
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// ClientIP returns the canonical client address of r or "" when none can be established.
// Proxy headers are only honoured when trustedProxy is set.
func ClientIP(r *http.Request, trustedProxy bool) string {
	if trustedProxy {
		return getProxyClientIP(r)
	}
	return getDirectClientIPValidated(r)
}

func getProxyClientIP(r *http.Request) string {
	for _, header := range proxyHeaders {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}

		// X-Forwarded-For carries a list, the origin comes first
		first, _, _ := strings.Cut(value, ",")

		addr, err := netip.ParseAddr(strings.TrimSpace(first))
		// private addresses in a proxy header are spoofing attempts
		if err != nil || isPrivateAddr(addr) {
			continue
		}
		return addr.Unmap().String()
	}

	return getDirectClientIPValidated(r)
}

func getDirectClientIPValidated(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// no port
		host = r.RemoteAddr
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}
