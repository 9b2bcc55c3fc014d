package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
	"strings"
	"unicode"
)

// HashReader consumes r and returns the hex SHA-256 digest and byte count.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SanitizeName makes an uploaded file name safe to embed in a key: path
// separators and control characters become '_'.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// Key derives the storage key {prefix}/{hash}_{name}.
func Key(prefix, contentHash, originalName string) string {
	return path.Join(prefix, contentHash+"_"+SanitizeName(originalName))
}
