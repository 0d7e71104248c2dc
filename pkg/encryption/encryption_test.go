package encryption_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/encryption"
)

func TestGenerateKeyIfNeeded(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "recall.key")

	key1, err := encryption.GenerateKeyIfNeeded(keyPath)
	require.NoError(t, err)
	assert.Len(t, key1, encryption.KeySize)

	// A second call must return the same key, never regenerate it.
	key2, err := encryption.GenerateKeyIfNeeded(keyPath)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(keyPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "recall.key")
	cipher, err := encryption.NewCipherFromFile(keyPath)
	require.NoError(t, err)

	plaintext := "My favorite fruit is mango"
	ciphertext, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), plaintext)

	decrypted, err := cipher.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "recall.key")
	cipher, err := encryption.NewCipherFromFile(keyPath)
	require.NoError(t, err)

	// Random nonces: same plaintext must not produce the same ciphertext.
	c1, err := cipher.Encrypt("same content")
	require.NoError(t, err)
	c2, err := cipher.Encrypt("same content")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "recall.key")
	cipher, err := encryption.NewCipherFromFile(keyPath)
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("sensitive content")
	require.NoError(t, err)

	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = cipher.Decrypt(tampered)
	assert.ErrorIs(t, err, encryption.ErrDecrypt)

	// Garbage that is too short to even hold a nonce.
	_, err = cipher.Decrypt([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, encryption.ErrDecrypt)
}

func TestDecryptWithWrongKey(t *testing.T) {
	dir := t.TempDir()
	cipherA, err := encryption.NewCipherFromFile(filepath.Join(dir, "a.key"))
	require.NoError(t, err)
	cipherB, err := encryption.NewCipherFromFile(filepath.Join(dir, "b.key"))
	require.NoError(t, err)

	ciphertext, err := cipherA.Encrypt("secret")
	require.NoError(t, err)

	_, err = cipherB.Decrypt(ciphertext)
	assert.ErrorIs(t, err, encryption.ErrDecrypt)
}
