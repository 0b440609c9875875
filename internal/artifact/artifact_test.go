package artifact

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunIDsAreOrdered(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestCaseDirSlugs(t *testing.T) {
	run, err := NewRun(t.TempDir())
	require.NoError(t, err)

	dir, err := run.CaseDir("Cart", "should calculate total: 3 items!")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(run.Root, "cart", "should-calculate-total-3-items"), dir)
	assert.DirExists(t, dir)
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	img.Set(10, 10, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	thumb, err := Thumbnail(buf.Bytes(), 50)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
	assert.Equal(t, 25, decoded.Bounds().Dy())
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "shot.png")
	require.NoError(t, WriteFile(path, []byte("x")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, filepath.Join(filepath.Dir(path), "shot.thumb.png"), ThumbnailPath(path))
}
