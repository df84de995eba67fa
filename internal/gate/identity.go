package gate

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIdentity is returned when a request carries no usable address.
const UnknownIdentity = "unknown"

// ResolveIdentity extracts the caller IP from a request. The first entry of
// X-Forwarded-For wins (the original client, per proxy convention); otherwise
// the transport address is used with its port stripped.
func ResolveIdentity(header http.Header, remoteAddr string) string {
	if header != nil {
		if xff := header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	addr := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return UnknownIdentity
}
