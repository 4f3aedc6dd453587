// Package sha256 provides SHA-256 fingerprints for secrets that must not be logged.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLen = 12

// Fingerprint returns a short hex digest of value, or "" for an empty value.
// Equal inputs give equal fingerprints, so log lines stay correlatable without
// exposing the secret.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
