// Package otp generates RFC 6238 time-based one-time passwords for entries
// that carry a Base32 secret.
package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the time step in seconds.
	Period = 30
	// Digits is the code length.
	Digits = 6
	// SecretSize is the number of random bytes in a generated secret (160 bits).
	SecretSize = 20
)

var opts = totp.ValidateOpts{
	Period:    Period,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Normalize strips whitespace and '=' padding, upper-cases the secret and
// checks that only the Base32 alphabet (A-Z, 2-7) remains.
func Normalize(secret string) (string, error) {
	var b strings.Builder
	for _, r := range secret {
		if unicode.IsSpace(r) || r == '=' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	s := b.String()
	if s == "" {
		return "", fmt.Errorf("secret is empty: %w", common.ErrInvalidFormat)
	}

	for i, r := range []rune(s) {
		if (r < 'A' || r > 'Z') && (r < '2' || r > '7') {
			return "", fmt.Errorf("invalid character '%c' at position %d: %w", r, i, common.ErrInvalidFormat)
		}
	}
	return s, nil
}

// Decode normalizes secret and decodes it, trying unpadded Base32 first and
// padded Base32 second.
func Decode(secret string) ([]byte, error) {
	s, err := Normalize(secret)
	if err != nil {
		return nil, err
	}
	// 1, 3 and 6 trailing characters never end a Base32 string
	switch len(s) % 8 {
	case 1, 3, 6:
		return nil, fmt.Errorf("secret length %d is not valid Base32: %w", len(s), common.ErrInvalidFormat)
	}

	if key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s); err == nil && len(key) > 0 {
		return key, nil
	}
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}
	key, err := base32.StdEncoding.DecodeString(s)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("decode base32 secret: %w", common.ErrInvalidFormat)
	}
	return key, nil
}

// Generate returns the current 6-digit code for secret.
func Generate(secret string) (string, error) {
	return GenerateAt(secret, time.Now())
}

// GenerateAt returns the 6-digit code for secret at t.
func GenerateAt(secret string, t time.Time) (string, error) {
	key, err := Decode(secret)
	if err != nil {
		return "", err
	}
	code, err := totp.GenerateCodeCustom(base32.StdEncoding.EncodeToString(key), t, opts)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

// Validate reports whether code matches secret at t, allowing one step of
// clock skew either side.
func Validate(code, secret string, t time.Time) (bool, error) {
	key, err := Decode(secret)
	if err != nil {
		return false, err
	}
	o := opts
	o.Skew = 1
	return totp.ValidateCustom(code, base32.StdEncoding.EncodeToString(key), t, o)
}

// Remaining returns the seconds left before the code for t changes.
func Remaining(t time.Time) int {
	return Period - int(t.Unix()%Period)
}

// GenerateSecret returns 160 random bits as padded Base32.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.EncodeToString(b), nil
}

// URI builds an otpauth:// provisioning URI. Issuer and account are
// percent-encoded; the secret is embedded without padding.
func URI(secret, account, issuer string) string {
	secret = strings.TrimRight(secret, "=")
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		percentEncode(issuer), percentEncode(account), secret, percentEncode(issuer))
}

func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
