// Package encryption provides at-rest encryption for memory content.
//
// Memory content is encrypted with AES-256-GCM using a symmetric key that is
// generated once and persisted to a local key file. Losing the key file makes
// all previously encrypted content unrecoverable; there is no key escrow.
// Timestamps, tags, sentiment and speaker columns stay in plaintext so the
// store remains queryable without the key.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

// KeySize is the symmetric key length in bytes (AES-256).
const KeySize = 32

// ErrDecrypt indicates that a ciphertext could not be authenticated or
// decrypted. Callers treat this as an integrity error for the affected row.
var ErrDecrypt = errors.New("encryption: decrypt failed")

// GenerateKeyIfNeeded returns the symmetric key stored at path, generating
// and persisting a fresh one on first use.
//
// The key file is created with 0600 permissions. Once a key file exists it is
// never regenerated; a short or unreadable key file is a configuration error.
func GenerateKeyIfNeeded(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != KeySize {
			return nil, fmt.Errorf("encryption: key file %s has %d bytes, want %d", path, len(data), KeySize)
		}
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("encryption: read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("encryption: generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("encryption: write key file: %w", err)
	}
	return key, nil
}

// Cipher encrypts and decrypts memory content with AES-256-GCM.
//
// Each Encrypt call uses a fresh random nonce, prepended to the ciphertext,
// so identical plaintexts produce different blobs.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromFile loads (or creates) the key at keyPath and returns a
// Cipher for it.
func NewCipherFromFile(keyPath string) (*Cipher, error) {
	key, err := GenerateKeyIfNeeded(keyPath)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt encrypts a UTF-8 string into a nonce-prefixed blob.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt decrypts a blob produced by Encrypt.
//
// Returns ErrDecrypt (wrapped) if the blob is truncated, tampered with, or
// was encrypted under a different key.
func (c *Cipher) Decrypt(blob []byte) (string, error) {
	if len(blob) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: blob shorter than nonce", ErrDecrypt)
	}
	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
