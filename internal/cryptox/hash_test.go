package cryptox

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = HashParams{Memory: 1024, Time: 1, Threads: 1, KeyLen: 32}

func TestHashPassword_Format(t *testing.T) {
	h, err := HashPassword([]byte("master"), fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=1024,t=1,p=1$"), h)
	assert.Len(t, strings.Split(h, "$"), 6)
}

func TestVerifyPassword_MatchAndMismatch(t *testing.T) {
	h, err := HashPassword([]byte("master"), fastParams)
	require.NoError(t, err)

	ok, err := VerifyPassword([]byte("master"), h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword([]byte("Master"), h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_DefaultParams(t *testing.T) {
	h, err := HashPassword([]byte("pw"), DefaultHashParams)
	require.NoError(t, err)
	assert.Contains(t, h, "m=19456,t=2,p=1")

	ok, err := VerifyPassword([]byte("pw"), h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPassword_MalformedHashIsFatal(t *testing.T) {
	tests := []struct {
		name string
		phc  string
	}{
		{"empty", ""},
		{"plain text", "not-a-hash"},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv"},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"missing params", "$argon2id$v=19$m=1024$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"bad param", "$argon2id$v=19$m=abc,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$***$aGFzaGhhc2g"},
		{"empty hash", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword([]byte("pw"), tt.phc)
			require.ErrorIs(t, err, common.ErrInvalidFormat)
			assert.False(t, ok)
		})
	}
}
