// Package limiter defines login rate limiting for the auth backend.
package limiter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"net"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts per (account, client).
type Limiter interface {
	// Allow reports whether login is currently allowed and the remaining block time.
	Allow(ctx context.Context, account string, clientHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, account string, clientHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, account string, clientHash []byte) (bool, time.Duration, error)
}

// Config tunes the lockout policy.
type Config struct {
	Window   time.Duration // failures older than this start a new count
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration // block length
}

// DefaultConfig is 5 failures in 15 minutes, blocked for 15 minutes.
func DefaultConfig() Config {
	return Config{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}
}

// HashClient returns a keyed hash of the client address so raw IPs are never stored.
// The port, if any, is dropped.
func HashClient(pepper, remoteAddr string) []byte {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	m := hmac.New(sha256.New, []byte(pepper))
	m.Write([]byte(strings.ToLower(host)))
	return m.Sum(nil)
}

// NormalizeAccount folds an email to the key used by the limiter.
func NormalizeAccount(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
