package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/common"
	"golang.org/x/crypto/argon2"
)

// PHC hash parameters for HashPassword.
type HashParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultHashParams mirror the legacy format (argon2id, m=19456, t=2, p=1).
var DefaultHashParams = HashParams{Memory: legacyMemory, Time: legacyTime, Threads: legacyThreads, KeyLen: KeySize}

// HashPassword returns a PHC string such as
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
//
// with salt and hash in unpadded standard base64.
func HashPassword(password []byte, p HashParams) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	hash := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword checks password against a PHC Argon2 hash (argon2id or
// argon2i) using a constant-time comparison. A hash that cannot be parsed is
// an error wrapping common.ErrInvalidFormat; a mismatch is (false, nil).
func VerifyPassword(password []byte, phc string) (bool, error) {
	ph, err := parsePHC(phc)
	if err != nil {
		return false, err
	}

	var got []byte
	switch ph.variant {
	case "argon2id":
		got = argon2.IDKey(password, ph.salt, ph.time, ph.memory, ph.threads, uint32(len(ph.hash)))
	case "argon2i":
		got = argon2.Key(password, ph.salt, ph.time, ph.memory, ph.threads, uint32(len(ph.hash)))
	}
	defer Wipe(got)

	return subtle.ConstantTimeCompare(got, ph.hash) == 1, nil
}

type phcHash struct {
	variant string
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func parsePHC(s string) (*phcHash, error) {
	bad := func(reason string) error {
		return fmt.Errorf("password hash: %s: %w", reason, common.ErrInvalidFormat)
	}

	// "", variant, version, params, salt, hash
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, bad("unexpected layout")
	}

	ph := &phcHash{variant: parts[1]}
	if ph.variant != "argon2id" && ph.variant != "argon2i" {
		return nil, bad("unsupported algorithm " + strconv.Quote(ph.variant))
	}

	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, bad("unsupported version " + strconv.Quote(parts[2]))
	}

	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, bad("malformed parameter " + strconv.Quote(kv))
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, bad("malformed parameter " + strconv.Quote(kv))
		}
		switch k {
		case "m":
			ph.memory = uint32(n)
		case "t":
			ph.time = uint32(n)
		case "p":
			if n == 0 || n > 255 {
				return nil, bad("parallelism out of range")
			}
			ph.threads = uint8(n)
		}
	}
	if ph.memory == 0 || ph.time == 0 || ph.threads == 0 {
		return nil, bad("missing parameters")
	}

	var err error
	if ph.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, bad("salt encoding")
	}
	if ph.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(ph.hash) == 0 {
		return nil, bad("hash encoding")
	}
	return ph, nil
}
