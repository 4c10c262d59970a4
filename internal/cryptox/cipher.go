package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
)

// NonceSize is the AES-GCM nonce length (96 bits).
const NonceSize = 12

// ErrAuthFailed is the single error returned for every decryption failure:
// wrong key, tampered ciphertext, tampered or malformed nonce. Callers cannot
// tell these cases apart.
var ErrAuthFailed = errors.New("decryption failed: authentication error")

// Encrypt seals plaintext with AES-256-GCM under key. A new random nonce is
// generated on every call and returned next to the ciphertext.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. It never returns partial
// plaintext; any failure is ErrAuthFailed.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrAuthFailed
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, ErrAuthFailed
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// EncryptJSON marshals v to JSON and encrypts it with Encrypt.
func EncryptJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer Wipe(plaintext)

	return Encrypt(plaintext, key)
}

// DecryptJSON decrypts ciphertext and unmarshals the JSON into v.
func DecryptJSON(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Decrypt(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	defer Wipe(plaintext)

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
