package source

import (
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Directory serves the images matching a glob pattern, one per Grab, in
// random order. It is exhausted once every file has been served.
type Directory struct {
	Pattern string

	files []string
	l     sync.Mutex
}

func NewDirectory(pattern string) (*Directory, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	rand.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})
	if len(files) == 0 {
		log.Warnf("No files found matching %q", pattern)
	} else {
		log.Debugf("Found %d files matching %q", len(files), pattern)
	}
	return &Directory{
		Pattern: pattern,
		files:   files,
	}, nil
}

// Remaining returns the number of files not yet served.
func (d *Directory) Remaining() int {
	d.l.Lock()
	defer d.l.Unlock()
	return len(d.files)
}

func (d *Directory) Grab() (*Image, error) {
	d.l.Lock()
	if len(d.files) == 0 {
		d.l.Unlock()
		return nil, errors.Wrapf(ErrExhausted, "%s", d.Pattern)
	}
	var path string
	path, d.files = d.files[0], d.files[1:]
	d.l.Unlock()

	start := time.Now()
	m := gocv.IMRead(path, gocv.IMReadColor)
	if m.Empty() {
		m.Close()
		return nil, errors.Wrapf(ErrReadFailed, "%s", path)
	}
	log.Debugf("Read %s in %v", path, time.Since(start))
	return WrapMat(m), nil
}

func (d *Directory) Release() {
	d.l.Lock()
	defer d.l.Unlock()
	d.files = nil
}
