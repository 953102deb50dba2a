package jobcode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 42, 1001, 99999, 1234567890} {
		code := Encode(id)
		require.True(t, strings.HasPrefix(code, Prefix), "code %s", code)

		decoded, err := Decode(code)
		require.NoError(t, err)
		require.Equal(t, id, decoded)
	}
}

func TestDecodeAcceptsLowercaseAndWhitespace(t *testing.T) {
	code := Encode(1001)
	decoded, err := Decode("  " + strings.ToLower(code) + " ")
	require.NoError(t, err)
	require.Equal(t, int64(1001), decoded)
}

func TestDecodeDetectsSingleDigitMutation(t *testing.T) {
	code := Encode(10023)
	body := code[len(Prefix):]

	for pos := 0; pos < len(body); pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if body[pos] == d {
				continue
			}
			mutated := Prefix + body[:pos] + string(d) + body[pos+1:]
			_, err := Decode(mutated)
			require.ErrorIs(t, err, ErrChecksum, "mutation at %d -> %s", pos, mutated)
		}
	}
}

func TestDecodeDetectsAdjacentTransposition(t *testing.T) {
	code := Encode(10023)
	body := []byte(code[len(Prefix):])

	for pos := 0; pos < len(body)-1; pos++ {
		if body[pos] == body[pos+1] {
			continue
		}
		swapped := append([]byte(nil), body...)
		swapped[pos], swapped[pos+1] = swapped[pos+1], swapped[pos]
		_, err := Decode(Prefix + string(swapped))
		require.ErrorIs(t, err, ErrChecksum, "transposition at %d", pos)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{"", "JC:", "JC:7", "10023", "JX:10023", "JC:10a23"} {
		_, err := Decode(input)
		require.Error(t, err, "input %q", input)
		require.True(t, errors.Is(err, ErrMalformed), "input %q got %v", input, err)
	}
}

func TestExtract(t *testing.T) {
	code := Encode(10023)

	found, ok := Extract("Hi, I want to apply for " + strings.ToLower(code) + " please")
	require.True(t, ok)
	require.Equal(t, code, found)

	_, ok = Extract("no code in here")
	require.False(t, ok)
}
