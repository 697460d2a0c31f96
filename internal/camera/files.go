package camera

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"card-scanner/internal/card"

	_ "golang.org/x/image/tiff"
)

// ErrExhausted is returned by Files once every image has been served.
var ErrExhausted = io.EOF

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
}

// Files serves a fixed list of images as frames, one per call.
type Files struct {
	mu    sync.Mutex
	paths []string
	next  int
	loop  bool
}

// NewFiles creates a source over paths. Directories are expanded to the
// images they contain, sorted by name. With loop set the list repeats.
func NewFiles(paths []string, loop bool) (*Files, error) {
	var all []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			all = append(all, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		all = append(all, found...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return &Files{paths: all, loop: loop}, nil
}

// Len returns the number of images.
func (f *Files) Len() int {
	return len(f.paths)
}

// Frame decodes the next image. It returns ErrExhausted after the last one
// unless looping.
func (f *Files) Frame() (*card.Frame, error) {
	f.mu.Lock()
	if f.next >= len(f.paths) {
		if !f.loop {
			f.mu.Unlock()
			return nil, ErrExhausted
		}
		f.next = 0
	}
	path := f.paths[f.next]
	f.next++
	f.mu.Unlock()

	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return card.NewFrame(img, time.Now()), nil
}

// Load decodes a JPEG, PNG or TIFF image.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
