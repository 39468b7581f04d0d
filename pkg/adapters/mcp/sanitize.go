package mcp

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxDocumentSize bounds inline templates and mappings (1 MiB).
	DefaultMaxDocumentSize = 1 << 20
	// EnvMaxDocumentSize is the environment variable to override the default
	EnvMaxDocumentSize = "WITMORPH_MAX_DOCUMENT_SIZE"
)

var (
	ErrDocumentTooLarge = errors.New("document exceeds maximum allowed size")
	ErrInvalidUTF8      = errors.New("document contains invalid UTF-8 sequences")
)

// SanitizeDocument enforces the size limit on an inline document,
// validates UTF-8 and strips control characters other than whitespace.
func SanitizeDocument(input string) (string, error) {
	limit := maxDocumentSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrDocumentTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxDocumentSize() int {
	if val := os.Getenv(EnvMaxDocumentSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxDocumentSize
}
