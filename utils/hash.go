package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
)

// Fingerprint returns the hex sha256 of the file content. The file name plays no part.
func Fingerprint(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", apperr.NewIOError("open", filePath, err)
	}
	defer f.Close()

	return FingerprintReader(f, filePath)
}

func FingerprintReader(r io.Reader, name string) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", apperr.NewIOError("read", name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CanonicalName builds the library file name in hash.ext format.
func CanonicalName(fingerprint, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fingerprint + ext
}
