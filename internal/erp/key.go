package erp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keyPrefix = "stockhold-"

// Key derives the idempotency key for one logical reservation attempt.
// The same user, sku and attempt always produce the same key.
func Key(userID, sku, attempt string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(userID),
		strings.TrimSpace(sku),
		strings.TrimSpace(attempt),
	}, "|")))
	return keyPrefix + hex.EncodeToString(sum[:])
}
