package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// CacheKeyVersion is the current cache key version. v2 length-prefixes each
// field; v1 keys joined them with a bare "|".
const CacheKeyVersion = "v2"

// GenerateCacheKey derives the cache key for a synthesis request. The key
// depends only on the normalized text, provider, voice and rate, and doubles
// as the artifact's file stem.
func GenerateCacheKey(text, provider, voice string, rate int) string {
	h := sha256.New()
	for _, field := range []string{NormalizeText(text), provider, voice, strconv.Itoa(rate)} {
		fmt.Fprintf(h, "%d:%s|", len(field), field)
	}

	hash := h.Sum(nil)
	return CacheKeyVersion + "_" + hex.EncodeToString(hash)
}

// NormalizeText trims surrounding whitespace and lowercases text.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
