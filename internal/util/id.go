package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier like "sup_9f2c...". Tender records are
// keyed by their business key and never use generated ids; these are for
// support requests and other engine-created rows.
func NewID(prefix string) string {
	bytes := make([]byte, 12)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
