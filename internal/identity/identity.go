// Package identity maps inbound requests to a stable usage-accounting key.
//
// The fingerprint is a best-effort, spoofable identity: a client-supplied
// token is trusted verbatim for session continuity, and absent a token the
// key is a deterministic digest of the network origin. It is an accounting
// key, not a security boundary.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// HeaderFingerprint is the header clients use to carry their identity token.
const HeaderFingerprint = "X-Fingerprint"

const digestLen = 16

// Resolve produces the identity key for a client token and fallback origin.
// A non-empty token is used verbatim; otherwise the key is a fixed-length
// digest of the origin so the same origin maps to the same key.
func Resolve(clientToken, origin string) string {
	if token := strings.TrimSpace(clientToken); token != "" {
		return token
	}
	if origin == "" {
		origin = "unknown"
	}
	sum := sha256.Sum256([]byte(origin))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// FromRequest resolves the identity key for an HTTP request, preferring the
// fingerprint header and falling back to the client IP.
func FromRequest(r *http.Request) string {
	return Resolve(r.Header.Get(HeaderFingerprint), ClientIP(r))
}

// ClientIP extracts the originating client IP, honoring the first hop of
// X-Forwarded-For when present.
func ClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
