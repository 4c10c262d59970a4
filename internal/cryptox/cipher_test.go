package cryptox

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, KeySize)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := newKey(t)

	for _, msg := range [][]byte{[]byte("x"), []byte("hello vault"), bytes.Repeat([]byte{0xAB}, 4096)} {
		ct, nonce, err := Encrypt(msg, key)
		require.NoError(t, err)
		require.Len(t, nonce, NonceSize)
		assert.NotEqual(t, msg, ct)

		pt, err := Decrypt(ct, nonce, key)
		require.NoError(t, err)
		assert.Equal(t, msg, pt)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	ct, nonce, err := Encrypt([]byte("secret"), newKey(t))
	require.NoError(t, err)

	pt, err := Decrypt(ct, nonce, newKey(t))
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Nil(t, pt)
}

func TestDecrypt_TamperingFailsGenerically(t *testing.T) {
	key := newKey(t)
	ct, nonce, err := Encrypt([]byte("secret payload"), key)
	require.NoError(t, err)

	badCT := append([]byte(nil), ct...)
	badCT[0] ^= 0x01

	badNonce := append([]byte(nil), nonce...)
	badNonce[len(badNonce)-1] ^= 0x80

	tests := []struct {
		name  string
		ct    []byte
		nonce []byte
		key   []byte
	}{
		{"flipped ciphertext bit", badCT, nonce, key},
		{"flipped nonce bit", ct, badNonce, key},
		{"short nonce", ct, nonce[:8], key},
		{"empty nonce", ct, nil, key},
		{"truncated ciphertext", ct[:len(ct)-1], nonce, key},
		{"invalid key size", ct, nonce, key[:16]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := Decrypt(tt.ct, tt.nonce, tt.key)
			require.ErrorIs(t, err, ErrAuthFailed)
			assert.Equal(t, ErrAuthFailed.Error(), err.Error())
			assert.Nil(t, pt)
		})
	}
}

func TestEncrypt_NonceNeverRepeats(t *testing.T) {
	key := newKey(t)
	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		_, nonce, err := Encrypt([]byte("m"), key)
		require.NoError(t, err)
		_, dup := seen[string(nonce)]
		require.False(t, dup, "nonce reused at iteration %d", i)
		seen[string(nonce)] = struct{}{}
	}
}

func TestEncrypt_InvalidKeySize(t *testing.T) {
	_, _, err := Encrypt([]byte("m"), []byte("short"))
	assert.Error(t, err)
}

func TestEncryptDecryptJSON(t *testing.T) {
	type cfg struct {
		Bucket string `json:"bucket"`
		Path   string `json:"path"`
	}
	key := newKey(t)

	ct, nonce, err := EncryptJSON(cfg{Bucket: "b", Path: "vault.kdbx"}, key)
	require.NoError(t, err)

	var got cfg
	require.NoError(t, DecryptJSON(ct, nonce, key, &got))
	assert.Equal(t, cfg{Bucket: "b", Path: "vault.kdbx"}, got)

	assert.ErrorIs(t, DecryptJSON(ct, nonce, newKey(t), &got), ErrAuthFailed)
}
