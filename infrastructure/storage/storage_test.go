package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	return NewLocal(config.StorageConfig{
		Dir:              t.TempDir(),
		PublicURL:        "https://igrs.example.com/files/",
		MaxImageBytes:    10,
		MaxDocumentBytes: 20,
	})
}

func TestPersistWritesFile(t *testing.T) {
	l := newLocal(t)

	stored, err := l.Persist(context.Background(), []byte("jpeg"), "../../etc/road photo.jpg", "image/jpeg; charset=binary")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.URL, "https://igrs.example.com/files/"))
	assert.True(t, strings.HasSuffix(stored.URL, ".jpg"))
	assert.Equal(t, "road_photo.jpg", stored.FileName)

	data, err := os.ReadFile(filepath.Join(l.Dir(), filepath.Base(stored.URL)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	st, err := l.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, int64(4), st.TotalSize)
}

func TestPersistRejectsUnsupportedType(t *testing.T) {
	_, err := newLocal(t).Persist(context.Background(), []byte("x"), "a.gif", "image/gif")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPersistSizeCeilingsPerKind(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	_, err := l.Persist(ctx, make([]byte, 11), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = l.Persist(ctx, make([]byte, 11), "a.pdf", "application/pdf")
	assert.NoError(t, err, "documents have a larger ceiling")

	_, err = l.Persist(ctx, make([]byte, 21), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestPersistNotConfigured(t *testing.T) {
	l := NewLocal(config.StorageConfig{Dir: t.TempDir()})
	_, err := l.Persist(context.Background(), []byte("x"), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "document.pdf", displayName("", "application/pdf"))
	assert.Equal(t, "image.webp", displayName("...", "image/webp"))
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	assert.True(t, ok)
	assert.Equal(t, KindDocument, k)

	_, ok = KindOf("video/mp4")
	assert.False(t, ok)
}
