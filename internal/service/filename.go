package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"file.share/internal/crypto"
)

// maxStemBytes leaves room for the timestamp, suffix and extension within
// the usual 255-byte file name limit.
const maxStemBytes = 180

// SanitizeFilename keeps the last path element of name, turns whitespace
// into underscores and drops anything that is not a letter, digit, '.', '-'
// or '_'. Leading dots and underscores are removed together so the result
// never starts with a dot.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	return strings.TrimRight(strings.TrimLeft(b.String(), "._"), "_")
}

// extension returns the lowercased extension without the dot, or "" when
// the name has none.
func extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// storedName derives the blob key for a sanitized name: stem, UTC time to
// the nanosecond and a random suffix, so concurrent uploads of the same file
// in the same instant still get distinct keys.
func storedName(name string, now time.Time) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = truncateBytes(stem, maxStemBytes)
	if stem == "" {
		stem = "file"
	}

	now = now.UTC()
	return fmt.Sprintf("%s_%s_%09d_%s%s",
		stem, now.Format("20060102_150405"), now.Nanosecond(), crypto.RandomSuffix(), ext)
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
