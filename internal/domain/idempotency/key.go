// Package idempotency derives the deduplication keys stored under unique
// constraints for media requests and outbound posts.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLength is the length of every derived key (hex-encoded SHA-256).
const KeyLength = sha256.Size * 2

// Key returns the hex SHA-256 digest of input.
//
// Input is hashed verbatim: callers normalize before deriving.
func Key(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ForReelURL returns the key of a media request for an already normalized URL.
func ForReelURL(normalizedURL string) string {
	return Key(normalizedURL)
}

// ForOutboundPost returns the key of the delivery of mediaID to targetChatID.
func ForOutboundPost(mediaID, targetChatID string) string {
	return Key(mediaID + ":" + targetChatID)
}
