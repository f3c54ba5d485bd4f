package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// maxKeyLength caps storage keys to keep backends like Redis happy.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(*http.Request) string

// ByClientIP keys requests by the caller's IP address.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ByPath keys requests by URL path, giving each endpoint its own window.
func ByPath(r *http.Request) string {
	return r.URL.Path
}

// ByHeader keys requests by the value of the given header.
func ByHeader(name string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(name)
	}
}

// Composite combines multiple key functions into one identity+endpoint
// style composite. Keys longer than 64 chars are hashed to 32 hex chars
// with SHA256 to bound storage key size without meaningful collision risk.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}

		if len(parts) == 1 && len(parts[0]) <= maxKeyLength {
			return parts[0]
		}

		combined := strings.Join(parts, ":")

		if len(combined) > maxKeyLength {
			hash := sha256.Sum256([]byte(combined))
			return hex.EncodeToString(hash[:16])
		}

		return combined
	}
}
