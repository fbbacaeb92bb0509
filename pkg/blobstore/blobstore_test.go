package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/pkg/security"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"My Lab Report.pdf":   "My_Lab_Report.pdf",
		"../../etc/passwd":    "etc_passwd",
		`C:\scans\chest.dcm`:  "C_scans_chest.dcm",
		"  x-ray (final).png": "x-ray_final.png",
		"...":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestGenerateKey(t *testing.T) {
	at := time.Date(2025, 2, 10, 9, 5, 7, 0, time.UTC)

	key, err := GenerateKey(at, "blood test.pdf")
	require.NoError(t, err)
	assert.Equal(t, "20250210_090507_blood_test.pdf", key)

	_, err = GenerateKey(at, "///")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestExtensionAllowed(t *testing.T) {
	for _, name := range []string{"a.pdf", "a.PNG", "a.jpg", "a.jpeg", "scan.dcm", "a.doc", "a.docx"} {
		assert.True(t, ExtensionAllowed(name), name)
	}
	for _, name := range []string{"a.exe", "a", "pdf", "a.pdf.sh"} {
		assert.False(t, ExtensionAllowed(name), name)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 0, nil)
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := store.Put(ctx, "20250210_090507_report.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Equal(t, int64(len(pdf)), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)

	rc, err := store.Open(ctx, obj.Key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pdf, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")

	require.NoError(t, store.Delete(ctx, obj.Key))
	_, err = store.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestLocalStoreEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	enc, err := security.NewAESEncryptor(security.KeyFromSecret("storage-key"))
	require.NoError(t, err)
	store, err := NewLocalStore(dir, 0, enc)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "k.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "k.pdf"))
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(raw, []byte("%PDF")))

	rc, err := store.Open(ctx, "k.pdf")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
}

func TestLocalStoreRejectsOversizedAndBadKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 8, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "big.pdf", strings.NewReader("123456789"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = store.Put(ctx, "../escape.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing.pdf")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	_, err = store.Put(ctx, "a.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "a.pdf"))
	assert.ErrorIs(t, store.Delete(ctx, "a.pdf"), ErrBlobNotFound)
}
