// Package cryptox implements the vault's key derivation and authenticated
// encryption primitives: Argon2id key derivation, AES-256-GCM with a fresh
// 96-bit nonce per call, and verification of PHC-formatted Argon2 hashes
// written by older releases.
package cryptox

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of every symmetric key produced here (AES-256).
const KeySize = 32

// SaltSize is the length of random salts created by NewSalt.
const SaltSize = 16

// LegacySalt is the application-wide salt used by the JSON storage format
// that predates the container. It is only ever used to read those files.
var LegacySalt = []byte("2pass_fixed_salt_change_in_prod")

// Argon2id parameters matching the defaults used by the legacy format
// (m=19 MiB, t=2, p=1).
const (
	legacyMemory  = 19 * 1024
	legacyTime    = 2
	legacyThreads = 1
)

// DeriveKey derives a 256-bit key from password and a random per-install salt.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveLegacyKey derives the key used to encrypt legacy data.json files.
// The salt is fixed, so equal passphrases yield equal keys; new data is never
// written with this key.
func DeriveLegacyKey(password []byte) []byte {
	return argon2.IDKey(password, LegacySalt, legacyTime, legacyMemory, legacyThreads, KeySize)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
