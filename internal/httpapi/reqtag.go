package httpapi

import (
	"crypto/rand"
	"encoding/base64"
)

// requestTag returns a short random tag for log correlation, per spec.md
// §9: "Every request carries a short random tag (3 random bytes,
// URL-safe base64) in log lines."
func requestTag() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "------"
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}
