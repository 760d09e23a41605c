package api

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the peer address for refresh-token audit fields.
// chi's middleware.RealIP (applied globally) already rewrites RemoteAddr
// from forwarding headers when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return strings.Trim(host, "[]")
	}
	if ip := net.ParseIP(strings.TrimSpace(r.RemoteAddr)); ip != nil {
		return ip.String()
	}
	return "unknown"
}
