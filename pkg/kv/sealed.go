package kv

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeySize   = 32
	sealNonceSize = 24
)

// ErrUnsealable means a stored value could not be decrypted with the configured key.
var ErrUnsealable = errors.New("kv: stored value cannot be opened")

// SealedStore encrypts values with NaCl secretbox before handing them to the inner store.
// Keys are stored in the clear.
type SealedStore struct {
	inner Store
	key   [sealKeySize]byte
}

// NewSealedStore wraps inner; key must be exactly 32 bytes.
func NewSealedStore(inner Store, key []byte) (*SealedStore, error) {
	if inner == nil {
		return nil, errors.New("kv: sealed store requires an inner store")
	}
	if len(key) != sealKeySize {
		return nil, fmt.Errorf("kv: seal key must be %d bytes, got %d", sealKeySize, len(key))
	}
	s := &SealedStore{inner: inner}
	copy(s.key[:], key)
	return s, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	box, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(box) < sealNonceSize+secretbox.Overhead {
		return "", false, fmt.Errorf("%w: %s", ErrUnsealable, key)
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], box[:sealNonceSize])
	plain, ok := secretbox.Open(nil, box[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnsealable, key)
	}
	return string(plain), true, nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	var nonce [sealNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(box))
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the inner store.
func (s *SealedStore) Close() error {
	return Close(s.inner)
}
