package condcache

import (
	"crypto/sha256"
	"encoding/base64"
)

// ETagFor computes a strong entity tag from raw response bytes.
//
// The tag is a SHA-256 digest encoded as URL-safe base64 without padding,
// wrapped in double quotes as required for the ETag header. Identical bytes
// always yield an identical tag, independent of process restarts; any byte
// difference yields a different tag. The digest is a content-change
// detector, not a security primitive.
func ETagFor(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + base64.RawURLEncoding.EncodeToString(sum[:]) + `"`
}
