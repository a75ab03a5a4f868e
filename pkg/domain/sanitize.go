package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxFieldSize bounds a single request field in bytes.
	DefaultMaxFieldSize = 2048
	// EnvMaxFieldSize overrides DefaultMaxFieldSize.
	EnvMaxFieldSize = "LITEFORGE_MAX_FIELD_SIZE"
)

// SanitizeField cleans a single-line request field: it enforces the size limit,
// rejects invalid UTF-8, strips control characters and trims surrounding space.
// Field values end up inside source files, so a newline or ESC never survives.
func SanitizeField(input string) (string, error) {
	limit := maxFieldSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(input, unicode.IsControl) < 0 {
		return strings.TrimSpace(input), nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func maxFieldSize() int {
	if val := os.Getenv(EnvMaxFieldSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxFieldSize
}
