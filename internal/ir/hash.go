package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec     = "veritas/spec/v1"
	DomainCacheKey = "veritas/cachekey/v1"
	DomainBundle   = "veritas/bundle/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashSpec computes the content-addressed spec id from a canonical
// serialization. Two problem specs that normalize to the same canonical
// content produce byte-identical ids.
func HashSpec(canonical []byte) string {
	return hashWithDomain(DomainSpec, canonical)
}

// HashCacheKey computes a content-addressed cache key from the canonical
// serialization of the key components. Exact-equality lookup only; there is
// no approximate matching anywhere in this core.
func HashCacheKey(components IRObject) (string, error) {
	canonical, err := MarshalCanonical(components)
	if err != nil {
		return "", fmt.Errorf("HashCacheKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCacheKey, canonical), nil
}

// HashBundle computes a content-addressed id for a solution bundle.
// Used to verify byte-identical repeated evaluation of numeric-deterministic
// kernels.
func HashBundle(bundle SolutionBundle) (string, error) {
	canonical, err := MarshalCanonical(bundle.ToIR())
	if err != nil {
		return "", fmt.Errorf("HashBundle: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBundle, canonical), nil
}

// MustHashCacheKey is like HashCacheKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashCacheKey(components IRObject) string {
	key, err := HashCacheKey(components)
	if err != nil {
		panic(err)
	}
	return key
}
