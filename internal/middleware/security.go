package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// SecurityHeaders sets the content security policy and the usual hardening headers
type SecurityHeaders struct {
	isProd          bool
	cspHeaderString string
}

// NewSecurityHeaders builds the policy once. imageSources extends img-src, posts
// commonly embed images from a CDN.
func NewSecurityHeaders(isProd bool, imageSources ...string) *SecurityHeaders {
	cspHeader := "default-src 'self'; " +
		"script-src 'self'; " +
		// rendered posts ship their highlighting css inline
		"style-src 'self' 'unsafe-inline'; " +
		fmt.Sprintf("img-src %s; ", strings.Join(append([]string{"'self'", "data:"}, imageSources...), " ")) +
		"font-src 'self'; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self'"

	return &SecurityHeaders{
		isProd:          isProd,
		cspHeaderString: cspHeader,
	}
}

func (s *SecurityHeaders) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", s.cspHeaderString)

			if s.isProd {
				w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
			}

			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
