package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

// clientRequest builds a request from remote with header name/value pairs
func clientRequest(remote string, headers ...string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remote
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	return r
}

func TestClientIPUntrusted(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{name: "remote address", req: clientRequest("203.0.113.7:5000"), want: "203.0.113.7"},
		{name: "headers are ignored", req: clientRequest("203.0.113.7:5000", "X-Forwarded-For", "198.51.100.1", "CF-Connecting-IP", "198.51.100.2"), want: "203.0.113.7"},
		{name: "ipv6 remote", req: clientRequest("[2001:db8::1]:443"), want: "2001:db8::1"},
		{name: "ipv4 mapped remote", req: clientRequest("[::ffff:203.0.113.7]:443"), want: "203.0.113.7"},
		{name: "remote without port", req: clientRequest("203.0.113.7"), want: "203.0.113.7"},
		{name: "unparseable remote", req: clientRequest("somewhere:80"), want: ""},
		{name: "empty remote", req: clientRequest(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClientIP(tt.req, false); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClientIPTrustedProxy(t *testing.T) {
	t.Parallel()
	const proxy = "10.0.0.2:4000"
	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{
			name: "cloudflare header wins",
			req:  clientRequest(proxy, "CF-Connecting-IP", "198.51.100.2", "X-Forwarded-For", "198.51.100.1"),
			want: "198.51.100.2",
		},
		{
			name: "origin of a forwarded chain",
			req:  clientRequest(proxy, "X-Forwarded-For", " 198.51.100.1 , 10.0.0.9, 10.0.0.2"),
			want: "198.51.100.1",
		},
		{
			name: "real ip header as last resort",
			req:  clientRequest(proxy, "X-Real-IP", "198.51.100.3"),
			want: "198.51.100.3",
		},
		{
			name: "malformed header falls through",
			req:  clientRequest(proxy, "CF-Connecting-IP", "not-an-ip", "X-Forwarded-For", "198.51.100.1"),
			want: "198.51.100.1",
		},
		{
			name: "ipv4 mapped header is unmapped",
			req:  clientRequest(proxy, "X-Forwarded-For", "::ffff:198.51.100.4"),
			want: "198.51.100.4",
		},
		{
			name: "ipv6 header",
			req:  clientRequest(proxy, "X-Real-IP", "2001:db8::42"),
			want: "2001:db8::42",
		},
		{
			name: "spoofed loopback is skipped",
			req:  clientRequest(proxy, "CF-Connecting-IP", "127.0.0.1", "X-Real-IP", "198.51.100.5"),
			want: "198.51.100.5",
		},
		{
			name: "mapped private address is skipped",
			req:  clientRequest(proxy, "X-Forwarded-For", "::ffff:192.168.1.10"),
			want: "10.0.0.2",
		},
		{
			name: "no usable header uses the proxy address",
			req:  clientRequest(proxy, "X-Forwarded-For", "fe80::1"),
			want: "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClientIP(tt.req, true); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsPrivateAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1":          true,
		"10.1.2.3":           true,
		"172.16.0.1":         true,
		"192.168.0.1":        true,
		"169.254.1.1":        true,
		"0.0.0.0":            true,
		"::1":                true,
		"fd00::1":            true,
		"::ffff:10.0.0.1":    true,
		"198.51.100.1":       false,
		"2001:db8::1":        false,
		"::ffff:203.0.113.7": false,
	}

	for raw, want := range tests {
		if got := isPrivateAddr(netip.MustParseAddr(raw)); got != want {
			t.Errorf("isPrivateAddr(%s) = %v, want %v", raw, got, want)
		}
	}
}
