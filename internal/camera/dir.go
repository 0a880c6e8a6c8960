package camera

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// DirSource replays the images of a directory in lexical order.
type DirSource struct {
	files []string
	next  int
}

// OpenDir lists the images in dir. Subdirectories are ignored.
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read frame directory")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

// Next decodes the next image. An undecodable file is a transient error.
func (d *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.files) {
		return nil, ErrEndOfStream
	}
	path := d.files[d.next]
	d.next++

	f, err := os.Open(path) //nolint:gosec // path comes from the configured directory
	if err != nil {
		return nil, errors.Wrapf(err, "open frame %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, Transient(errors.Wrapf(err, "decode frame %s", path))
	}
	return img, nil
}

// Len returns the number of frames in the directory.
func (d *DirSource) Len() int { return len(d.files) }

// Close is a no-op.
func (d *DirSource) Close() error { return nil }
