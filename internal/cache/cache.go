// Package cache stores search backend answers so repeated runs over the same
// claims do not spend search quota again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix versions the key space; bump it when cached payloads change shape
const keyPrefix = "claimcheck:v1:"

// Key derives a cache key from its parts (backend, query, top-k ...)
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached JSON value into v. A missing or undecodable entry
// reports false.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
