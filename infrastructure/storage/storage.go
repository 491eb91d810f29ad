package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNotConfigured   = errors.New("attachment storage is not configured")
)

// Kind groups mime types that share a size ceiling.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

var allowed = map[string]struct {
	kind Kind
	ext  string
}{
	"image/jpeg":         {KindImage, ".jpg"},
	"image/png":          {KindImage, ".png"},
	"image/webp":         {KindImage, ".webp"},
	"application/pdf":    {KindDocument, ".pdf"},
	"application/msword": {KindDocument, ".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {KindDocument, ".docx"},
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Stored is the public location of a persisted file.
type Stored struct {
	URL      string
	FileName string
	Size     int64
}

// Stats summarizes the storage directory.
type Stats struct {
	Files     int    `json:"files"`
	TotalSize int64  `json:"total_size"`
	HumanSize string `json:"human_size"`
}

// Local writes attachments below dir and serves them from publicURL.
type Local struct {
	dir              string
	publicURL        string
	maxImageBytes    int64
	maxDocumentBytes int64
}

func NewLocal(cfg config.StorageConfig) *Local {
	return &Local{
		dir:              cfg.Dir,
		publicURL:        strings.TrimSuffix(cfg.PublicURL, "/"),
		maxImageBytes:    cfg.MaxImageBytes,
		maxDocumentBytes: cfg.MaxDocumentBytes,
	}
}

// Configured reports whether files can be stored and linked.
func (l *Local) Configured() bool {
	return l.dir != "" && l.publicURL != ""
}

// Dir is the directory served under the public URL.
func (l *Local) Dir() string {
	return l.dir
}

// KindOf returns the kind for a mime type, or false when it is not accepted.
func KindOf(mime string) (Kind, bool) {
	a, ok := allowed[normalizeMime(mime)]
	return a.kind, ok
}

// Check validates mime and size without storing anything.
func (l *Local) Check(size int64, mime string) error {
	a, ok := allowed[normalizeMime(mime)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	limit := l.maxDocumentBytes
	if a.kind == KindImage {
		limit = l.maxImageBytes
	}
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %s exceeds the %s limit for %s files",
			ErrFileTooLarge, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(limit)), a.kind)
	}
	return nil
}

// Limit is the ceiling for kind, used in user-facing messages.
func (l *Local) Limit(kind Kind) string {
	if kind == KindImage {
		return humanize.Bytes(uint64(l.maxImageBytes))
	}
	return humanize.Bytes(uint64(l.maxDocumentBytes))
}

// Persist stores data under a random name and returns its public URL.
func (l *Local) Persist(ctx context.Context, data []byte, fileName, mime string) (Stored, error) {
	if !l.Configured() {
		return Stored{}, ErrNotConfigured
	}
	if err := l.Check(int64(len(data)), mime); err != nil {
		return Stored{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	display := displayName(fileName, mime)
	name := uuid.NewString() + allowed[normalizeMime(mime)].ext

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return Stored{}, fmt.Errorf("failed to create storage dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0644); err != nil {
		return Stored{}, fmt.Errorf("failed to write attachment: %w", err)
	}

	return Stored{
		URL:      l.publicURL + "/" + name,
		FileName: display,
		Size:     int64(len(data)),
	}, nil
}

// Stats walks the storage directory.
func (l *Local) Stats() (Stats, error) {
	var st Stats
	if l.dir == "" {
		return st, nil
	}
	err := filepath.WalkDir(l.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		st.Files++
		st.TotalSize += info.Size()
		return nil
	})
	st.HumanSize = humanize.Bytes(uint64(st.TotalSize))
	return st, err
}

func normalizeMime(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

func displayName(fileName, mime string) string {
	name := unsafeName.ReplaceAllString(filepath.Base(strings.TrimSpace(fileName)), "_")
	name = strings.Trim(name, "._")
	if name == "" || name == "." {
		a := allowed[normalizeMime(mime)]
		return string(a.kind) + a.ext
	}
	return name
}
