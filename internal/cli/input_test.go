package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPasswords makes readPassword return pw in order, then io.EOF.
func stubPasswords(t *testing.T, pw ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(pw) {
			return nil, io.EOF
		}
		p := pw[i]
		i++
		return []byte(p), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  hello  \nlast"))

	v, err := GetSimpleText(r, "Name", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, "Name\n> ", out.String())

	v, err = GetSimpleText(r, "Name", &out)
	require.NoError(t, err)
	assert.Equal(t, "last", v)

	_, err = GetSimpleText(r, "Name", &out)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetWithDefault(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("\nnew\n"))

	v, err := GetWithDefault(r, "Title", "old", &out)
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	assert.Contains(t, out.String(), "Title [old]")

	v, err = GetWithDefault(r, "Title", "old", &out)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestGetConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.in), func(t *testing.T) {
			ok, err := GetConfirm(bufio.NewReader(strings.NewReader(tt.in)), "Delete?", io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestGetPassword(t *testing.T) {
	stubPasswords(t, "s3cret")
	var out bytes.Buffer

	pw, err := GetPassword(&out, "Master passphrase")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Master passphrase: \n", out.String())

	_, err = GetPassword(&out, "again")
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetPassword_Error(t *testing.T) {
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	t.Cleanup(func() { readPassword = orig })

	_, err := GetPassword(io.Discard, "x")
	assert.EqualError(t, err, "no tty")
}

func TestGetNewPassword(t *testing.T) {
	stubPasswords(t, "a", "a", "a", "b")

	pw, err := GetNewPassword(io.Discard, "New passphrase")
	require.NoError(t, err)
	assert.Equal(t, "a", string(pw))

	_, err = GetNewPassword(io.Discard, "New passphrase")
	assert.EqualError(t, err, "passphrases do not match")
}

func TestGetMultiline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("one\r\ntwo\n\nafter\n"))
	v, err := GetMultiline(r, "Notes", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", v)

	rest, _ := r.ReadString('\n')
	assert.Equal(t, "after\n", rest)

	v, err = GetMultiline(bufio.NewReader(strings.NewReader("tail")), "Notes", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "tail", v)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, splitList(" a, ,b c,"))
	assert.Nil(t, splitList(""))
}
