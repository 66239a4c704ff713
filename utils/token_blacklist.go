package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.RWMutex
)

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "jwt:blacklist:" + hex.EncodeToString(sum[:])
}

// BlacklistToken revokes a token until its natural expiration.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	key := blacklistKey(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, key, "1", ttl).Err(); err == nil {
			return
		}
	}
	blacklistMu.Lock()
	blacklist[key] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	key := blacklistKey(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, key).Result()
		if err == nil && n > 0 {
			return true
		}
		// redis errors fail open; the in-memory map may still hold the token
	}
	blacklistMu.RLock()
	exp, ok := blacklist[key]
	blacklistMu.RUnlock()
	return ok && time.Now().Before(exp)
}

// purgeBlacklist drops expired in-memory entries and reports how many were removed.
func purgeBlacklist(now time.Time) int {
	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	n := 0
	for key, exp := range blacklist {
		if !now.Before(exp) {
			delete(blacklist, key)
			n++
		}
	}
	return n
}
