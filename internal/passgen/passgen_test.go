package passgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlyFrom(s, charset string) bool {
	for _, r := range s {
		if !strings.ContainsRune(charset, r) {
			return false
		}
	}
	return true
}

func TestGenerate_Defaults(t *testing.T) {
	pw, err := Generate(DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, pw, DefaultLength)
	assert.True(t, onlyFrom(pw, Lower+Upper+Digits), pw)
}

func TestGenerate_Classes(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		charset string
	}{
		{"digits only", Options{Length: 32, Digits: true}, Digits},
		{"lower only", Options{Length: 32, Lower: true}, Lower},
		{"symbols only", Options{Length: 32, Symbols: true}, Symbols},
		{"upper and symbols", Options{Length: 64, Upper: true, Symbols: true}, Upper + Symbols},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := Generate(tt.opts)
			require.NoError(t, err)
			assert.Len(t, pw, tt.opts.Length)
			assert.True(t, onlyFrom(pw, tt.charset), pw)
		})
	}
}

func TestGenerate_Invalid(t *testing.T) {
	_, err := Generate(Options{Length: 16})
	assert.ErrorIs(t, err, common.ErrInvalidFormat)

	_, err = Generate(Options{Length: MinLength - 1, Lower: true})
	assert.ErrorIs(t, err, common.ErrInvalidFormat)

	_, err = Generate(Options{Length: MaxLength + 1, Lower: true})
	assert.ErrorIs(t, err, common.ErrInvalidFormat)
}

func TestGenerate_UsesWholeCharset(t *testing.T) {
	old := randIndex
	t.Cleanup(func() { randIndex = old })

	next := 0
	randIndex = func(n int) (int, error) {
		i := next % n
		next++
		return i, nil
	}
	pw, err := Generate(Options{Length: 10, Digits: true})
	require.NoError(t, err)
	assert.Equal(t, Digits, pw)
}

func TestGenerate_RandomFailure(t *testing.T) {
	old := randIndex
	t.Cleanup(func() { randIndex = old })
	randIndex = func(int) (int, error) { return 0, errors.New("no entropy") }

	_, err := Generate(DefaultOptions())
	assert.ErrorContains(t, err, "no entropy")
}

func TestRate(t *testing.T) {
	tests := []struct {
		password string
		want     Strength
	}{
		{"", Weak},
		{"abc", Weak},
		{"abcdefghijkl", Weak},
		{"abcDEF123", Medium},
		{"abcdefghijklmnoP", Medium},
		{"abcDEF123!@#", Strong},
		{"Abcdefghijklmno1", Strong},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, Rate(tt.password))
		})
	}
	assert.Equal(t, "strong", Strong.String())
	assert.Equal(t, "weak", Weak.String())
}
