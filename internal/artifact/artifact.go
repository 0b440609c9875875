// Package artifact lays out the files a run produces: one directory per
// run, one per case beneath it, so parallel cases never share a path.
package artifact

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a sortable, unique run id.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Run is the artifact tree of one harness run.
type Run struct {
	ID   string
	Root string
}

// NewRun creates base/<run id>.
func NewRun(base string) (*Run, error) {
	id := NewRunID()
	root := filepath.Join(base, id)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &Run{ID: id, Root: root}, nil
}

// CaseDir returns (and creates) the directory of one case.
func (r *Run) CaseDir(suite, name string) (string, error) {
	dir := filepath.Join(r.Root, slug(suite), slug(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create case dir: %w", err)
	}
	return dir, nil
}

// Path joins elems under the run root.
func (r *Run) Path(elems ...string) string {
	return filepath.Join(append([]string{r.Root}, elems...)...)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	dash := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Thumbnail scales a PNG screenshot down to width, keeping the aspect ratio.
func Thumbnail(data []byte, width uint) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	small := resize.Resize(width, 0, img, resize.Lanczos3)
	return encodePNG(small)
}

// ThumbnailPath is the path a thumbnail of path is written to.
func ThumbnailPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".thumb" + ext
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
