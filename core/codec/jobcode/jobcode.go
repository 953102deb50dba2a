// Package jobcode encodes vacancy identifiers into human-shareable codes of
// the form JC:<digits><check>. Codes get read aloud and retyped, so the
// check digit has to catch typos instead of mapping them onto another
// vacancy. The Damm quasigroup digit detects all single-digit mutations and
// all adjacent transpositions.
package jobcode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix marks every job code.
const Prefix = "JC:"

var (
	// ErrMalformed indicates the code does not have the JC:<digits> shape.
	ErrMalformed = errors.New("jobcode: malformed code")
	// ErrChecksum indicates a well-formed code whose check digit does not match.
	ErrChecksum = errors.New("jobcode: checksum mismatch")
)

var codePattern = regexp.MustCompile(`(?i)\bJC:\d+\b`)

// Damm operation table. Row = interim digit, column = next input digit.
var dammTable = [10][10]int{
	{0, 3, 1, 7, 5, 9, 8, 6, 4, 2},
	{7, 0, 9, 2, 1, 5, 4, 8, 6, 3},
	{4, 2, 0, 6, 8, 7, 1, 3, 5, 9},
	{1, 7, 5, 0, 9, 8, 3, 4, 2, 6},
	{6, 1, 2, 3, 0, 4, 5, 9, 7, 8},
	{3, 6, 7, 4, 2, 0, 9, 5, 8, 1},
	{5, 8, 6, 9, 7, 2, 0, 1, 3, 4},
	{8, 9, 4, 5, 3, 6, 2, 0, 1, 7},
	{9, 4, 3, 8, 6, 1, 7, 2, 0, 5},
	{2, 5, 8, 1, 4, 3, 6, 7, 9, 0},
}

// Encode maps a vacancy id onto its shareable code.
func Encode(vacancyID int64) string {
	digits := strconv.FormatInt(vacancyID, 10)
	return Prefix + digits + strconv.Itoa(checkDigit(digits))
}

// Decode maps a code back onto its vacancy id. It returns ErrMalformed for
// inputs that do not look like a job code and ErrChecksum for codes whose
// check digit fails, which covers truncation and transposition typos.
func Decode(code string) (int64, error) {
	trimmed := strings.TrimSpace(code)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, Prefix) {
		return 0, ErrMalformed
	}

	body := upper[len(Prefix):]
	if len(body) < 2 {
		return 0, ErrMalformed
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}

	payload, check := body[:len(body)-1], body[len(body)-1]
	if checkDigit(payload) != int(check-'0') {
		return 0, ErrChecksum
	}

	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMalformed, payload)
	}
	return id, nil
}

// Extract finds a job code inside free text ("Apply JC:10023" and similar).
// The returned code is uppercased but not checksum-validated.
func Extract(text string) (string, bool) {
	match := codePattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

func checkDigit(digits string) int {
	interim := 0
	for _, r := range digits {
		interim = dammTable[interim][r-'0']
	}
	return interim
}
