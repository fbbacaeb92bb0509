// Package blobstore keeps uploaded medical documents in a flat namespace keyed
// by generated filenames.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrBlobNotFound        = errors.New("blob not found")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrInvalidKey          = errors.New("invalid blob key")
)

// MaxUploadSize is the largest accepted upload, 16 MiB.
const MaxUploadSize int64 = 16 << 20

// KeyTimeLayout is the timestamp prefix of generated keys.
const KeyTimeLayout = "20060102_150405"

var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"dcm":  {},
	"doc":  {},
	"docx": {},
}

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Store is implemented by the filesystem and in-memory stores.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ExtensionAllowed reports whether name ends in one of the accepted
// document or image extensions.
func ExtensionAllowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	_, ok := allowedExtensions[ext]
	return ok
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename reduces a client supplied filename to a safe ASCII name
// without directory components.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(whitespace.Split(strings.TrimSpace(name), -1), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// GenerateKey builds "<YYYYMMDD_HHMMSS>_<sanitized name>".
func GenerateKey(now time.Time, original string) (string, error) {
	clean := SanitizeFilename(original)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, original)
	}
	return fmt.Sprintf("%s_%s", now.Format(KeyTimeLayout), clean), nil
}

func validKey(key string) bool {
	return key != "" && key == filepath.Base(key) && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// readLimited reads r fully, failing once more than max bytes arrive.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) > max {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// DetectContentType sniffs the MIME type from content.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
