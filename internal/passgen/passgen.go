// Package passgen generates random passwords from selectable character
// classes and rates password strength.
package passgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/common"
)

const (
	Lower   = "abcdefghijklmnopqrstuvwxyz"
	Upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits  = "0123456789"
	Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

const (
	DefaultLength = 16
	MinLength     = 4
	MaxLength     = 128
)

// Options selects the length and character classes of a password.
type Options struct {
	Length  int
	Lower   bool
	Upper   bool
	Digits  bool
	Symbols bool
}

// DefaultOptions is letters and digits, 16 characters.
func DefaultOptions() Options {
	return Options{Length: DefaultLength, Lower: true, Upper: true, Digits: true}
}

func (o Options) charset() string {
	var b strings.Builder
	if o.Upper {
		b.WriteString(Upper)
	}
	if o.Lower {
		b.WriteString(Lower)
	}
	if o.Digits {
		b.WriteString(Digits)
	}
	if o.Symbols {
		b.WriteString(Symbols)
	}
	return b.String()
}

// randIndex is a test seam over crypto/rand.
var randIndex = func(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Generate returns a password drawn uniformly from the selected classes.
func Generate(o Options) (string, error) {
	if o.Length < MinLength || o.Length > MaxLength {
		return "", fmt.Errorf("length %d outside %d..%d: %w", o.Length, MinLength, MaxLength, common.ErrInvalidFormat)
	}
	cs := o.charset()
	if cs == "" {
		return "", fmt.Errorf("no character class selected: %w", common.ErrInvalidFormat)
	}

	out := make([]byte, o.Length)
	for i := range out {
		j, err := randIndex(len(cs))
		if err != nil {
			return "", fmt.Errorf("random source: %w", err)
		}
		out[i] = cs[j]
	}
	return string(out), nil
}

type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Strong:
		return "strong"
	case Medium:
		return "medium"
	default:
		return "weak"
	}
}

// Rate scores one point each for length >= 12, length >= 16 and every
// class present. Two or fewer is weak, five or more strong.
func Rate(password string) Strength {
	if password == "" {
		return Weak
	}
	score := 0
	n := len([]rune(password))
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}
	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			score++
		}
	}

	switch {
	case score <= 2:
		return Weak
	case score <= 4:
		return Medium
	default:
		return Strong
	}
}
