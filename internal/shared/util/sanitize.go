package util

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidFileName is returned for names that are empty after cleaning or
// that try to escape their directory.
var ErrInvalidFileName = errors.New("invalid file name")

const maxFileNameBytes = 200

// SanitizeFileName turns a client supplied upload name into a flat display
// and storage name. Separators become underscores, control characters are
// dropped and the result is capped to a fixed byte length on a rune boundary.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	for len(s) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	if s == "" || s == "_" {
		return "", ErrInvalidFileName
	}
	return s, nil
}
