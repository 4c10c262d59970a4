package otp

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B, SHA-1 seed "12345678901234567890", truncated to 6 digits.
var rfcSecret = base32.StdEncoding.EncodeToString([]byte("12345678901234567890"))

func TestGenerateAt_RFC6238Vectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tt := range tests {
		got, err := GenerateAt(rfcSecret, time.Unix(tt.unix, 0).UTC())
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "t=%d", tt.unix)
	}
}

func TestGenerateAt_NormalizesInput(t *testing.T) {
	at := time.Unix(59, 0)
	messy := strings.ToLower(rfcSecret[:8]) + " " + rfcSecret[8:16] + "\t" + rfcSecret[16:]

	a, err := GenerateAt(rfcSecret, at)
	require.NoError(t, err)
	b, err := GenerateAt(messy, at)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_SixDigits(t *testing.T) {
	code, err := Generate("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Len(t, code, Digits)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(" jbsw y3dp ehpk 3pxp== ")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got)
}

func TestNormalize_InvalidCharacter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JBSWY1DP", "invalid character '1' at position 5"},
		{"ABC!DEF", "invalid character '!' at position 3"},
		{"0AAA", "invalid character '0' at position 0"},
		{"AA AA8", "invalid character '8' at position 4"},
	}
	for _, tt := range tests {
		_, err := Normalize(tt.in)
		require.ErrorIs(t, err, common.ErrInvalidFormat)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "===="} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, common.ErrInvalidFormat, "input %q", in)
	}
}

func TestDecode_UnpaddedAndPadded(t *testing.T) {
	want := []byte("hello")
	for _, in := range []string{"NBSWY3DP", "NBSWY3DP====", "nbswy3dp"} {
		got, err := Decode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	odd, err := Decode("MZXW6")
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), odd)
}

func TestDecode_ImpossibleLength(t *testing.T) {
	for _, secret := range []string{"A", "ABC", "ABCDEF", "GEZDGNBVGY3TQOJQA"} {
		key, err := Decode(secret)
		assert.ErrorIs(t, err, common.ErrInvalidFormat, secret)
		assert.Empty(t, key, secret)

		_, err = GenerateAt(secret, time.Unix(59, 0))
		assert.ErrorIs(t, err, common.ErrInvalidFormat, secret)
	}
}

func TestValidate(t *testing.T) {
	at := time.Unix(1234567890, 0)
	ok, err := Validate("005924", rfcSecret, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate("005924", rfcSecret, at.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, ok, "one step of skew is accepted")

	ok, err = Validate("123456", rfcSecret, at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30, Remaining(time.Unix(60, 0)))
	assert.Equal(t, 1, Remaining(time.Unix(89, 0)))
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, s, 32)

	key, err := Decode(s)
	require.NoError(t, err)
	assert.Len(t, key, SecretSize)

	other, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestURI(t *testing.T) {
	got := URI("JBSWY3DPEHPK3PXP====", "alice@example.com", "My Corp")
	assert.Equal(t, "otpauth://totp/My%20Corp:alice%40example.com?secret=JBSWY3DPEHPK3PXP&issuer=My%20Corp", got)
}
