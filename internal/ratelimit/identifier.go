package ratelimit

import (
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Identifier derives the caller key from the first X-Forwarded-For hop, then
// X-Real-IP, and finally a hash of the User-Agent.
func Identifier(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	sum := blake2b.Sum256([]byte(r.UserAgent()))
	return "ua:" + hex.EncodeToString(sum[:16])
}
