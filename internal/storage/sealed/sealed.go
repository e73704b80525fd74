// Package sealed encrypts values of another storage.KV with XChaCha20-Poly1305.
//
// Each value is sealed with a fresh random nonce and the storage key as
// associated data, so a blob copied under another key fails to open.
package sealed

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/ieazie/doc-extract/internal/storage"
)

// MinSecretLen is the shortest accepted store secret.
const MinSecretLen = 16

const keyInfo = "doc-extract session store v1"

// ErrOpen marks a value that could not be decrypted. It wraps storage.ErrUnreadable.
var ErrOpen = fmt.Errorf("sealed: cannot open value: %w", storage.ErrUnreadable)

// Store is a storage.KV decorator.
type Store struct {
	inner storage.KV
	key   []byte
}

var _ storage.KV = (*Store)(nil)

// DeriveKey expands secret into a store key with HKDF-SHA256.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("sealed: secret must be at least %d bytes", MinSecretLen)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// New wraps inner with a key derived from secret.
func New(inner storage.KV, secret []byte) (*Store, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Store{inner: inner, key: key}, nil
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	pt, err := s.open(key, v)
	if err != nil {
		return "", false, fmt.Errorf("%w %q", err, key)
	}
	return pt, true, nil
}

// Set implements storage.KV.
func (s *Store) Set(ctx context.Context, key, value string) error {
	ct, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, ct)
}

// Remove implements storage.KV.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// seal returns base64(nonce || ciphertext).
func (s *Store) seal(key, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *Store) open(key, blob string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(blob)
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX {
		return "", ErrOpen
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce, ct := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return "", ErrOpen
	}
	return string(pt), nil
}
