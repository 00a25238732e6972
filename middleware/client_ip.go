package middleware

import (
	"net"
	"net/http"
	"strings"

	goVerify "github.com/MrEthical07/goVerify"
)

// ClientIP attaches the caller's address with [goVerify.WithClientIP] so the
// engine can throttle per IP and record it in audit events.
//
// With trustForwarded set, the first X-Forwarded-For entry wins. Only
// enable it behind a proxy that overwrites the header.
func ClientIP(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r.RemoteAddr)
			if trustForwarded {
				if fwd := forwardedIP(r.Header.Get("X-Forwarded-For")); fwd != "" {
					ip = fwd
				}
			}
			if ip != "" {
				r = r.WithContext(goVerify.WithClientIP(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

func forwardedIP(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return ""
	}
	return first
}
