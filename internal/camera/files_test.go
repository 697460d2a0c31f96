package camera

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{200, 10, 10, 255})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if filepath.Ext(path) == ".tif" {
		require.NoError(t, tiff.Encode(f, img, nil))
		return
	}
	require.NoError(t, png.Encode(f, img))
}

func TestFilesExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "b.png"), 20, 10)
	writeImage(t, filepath.Join(dir, "a.tif"), 30, 15)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	src, err := NewFiles([]string{dir}, false)
	require.NoError(t, err)
	require.Equal(t, 2, src.Len())

	f, err := src.Frame()
	require.NoError(t, err)
	require.Equal(t, 30, f.Width)
	require.Equal(t, 15, f.Height)
	require.False(t, f.Timestamp.IsZero())

	f, err = src.Frame()
	require.NoError(t, err)
	require.Equal(t, 20, f.Width)

	_, err = src.Frame()
	require.ErrorIs(t, err, ErrExhausted)
}

func TestFilesLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	writeImage(t, path, 8, 8)

	src, err := NewFiles([]string{path}, true)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := src.Frame()
		require.NoError(t, err)
	}
}

func TestFilesErrors(t *testing.T) {
	_, err := NewFiles([]string{t.TempDir()}, false)
	require.ErrorContains(t, err, "no images")

	_, err = NewFiles([]string{filepath.Join(t.TempDir(), "missing.png")}, false)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = Load(bad)
	require.ErrorContains(t, err, "failed to decode")
}
