// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Params are Argon2id cost parameters.
type Params struct {
	Time      uint32 // iterations
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   int
}

// DefaultParams are tuned for server-side hashing.
func DefaultParams() Params {
	return Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

// Hasher hashes and verifies passwords with fixed parameters.
type Hasher struct {
	p         Params
	dummySalt []byte
	dummyHash []byte
}

// NewHasher constructs a Hasher. It panics only if the system RNG fails.
func NewHasher(p Params) *Hasher {
	h := &Hasher{p: p}
	salt, err := RandBytes(p.SaltLen)
	if err != nil {
		panic(err)
	}
	h.dummySalt = salt
	h.dummyHash = h.derive([]byte("dx-dummy"), salt)
	return h
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash returns the Argon2id hash of password with a fresh salt.
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt, err = RandBytes(h.p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive([]byte(password), salt), salt, nil
}

// Verify checks password against the stored hash and salt in constant time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	got := h.derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// Burn spends the cost of one verification. Used for unknown accounts so
// response time does not reveal whether an email exists.
func (h *Hasher) Burn(password string) {
	_ = h.Verify(password, h.dummySalt, h.dummyHash)
}

func (h *Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.MemoryKiB, h.p.Threads, h.p.KeyLen)
}
