package source

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"camstream/util"
)

const resolveTimeout = 30 * time.Second

// Resolver maps a page URL (such as a YouTube live video) to a playable HLS
// URL.
type Resolver func(ctx context.Context, page string) (string, error)

// StreamlinkResolver resolves page URLs with the external streamlink binary,
// picking the best available quality.
func StreamlinkResolver(ctx context.Context, page string) (string, error) {
	bin, err := util.LocateStreamlink()
	if err != nil {
		return "", err
	}
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, bin, "--stream-url", page, "best")
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return "", errors.Wrapf(err, "streamlink: %s", strings.TrimSpace(stderr.String()+stdout.String()))
	}
	url := strings.TrimSpace(stdout.String())
	if url == "" {
		return "", errors.Errorf("no available HLS stream for %s", page)
	}
	return url, nil
}

// YouTube reads a YouTube live video through its HLS stream. The HLS URL is
// short lived, so a failed read re-resolves it once before giving up.
type YouTube struct {
	Page string

	opts    LiveOptions
	resolve Resolver
	newLive func(uri string, opts LiveOptions) (Source, error)

	live Source
	l    sync.Mutex
}

func NewYouTube(page string, opts LiveOptions) (*YouTube, error) {
	return newYouTube(page, opts, StreamlinkResolver, func(uri string, opts LiveOptions) (Source, error) {
		return NewLiveCapture(uri, opts)
	})
}

func newYouTube(page string, opts LiveOptions, resolve Resolver, newLive func(string, LiveOptions) (Source, error)) (*YouTube, error) {
	y := &YouTube{
		Page:    page,
		opts:    opts,
		resolve: resolve,
		newLive: newLive,
	}
	if err := y.reset(); err != nil {
		return nil, err
	}
	return y, nil
}

// reset resolves a fresh HLS URL and reconnects. Requires y.l or exclusive
// access.
func (y *YouTube) reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	url, err := y.resolve(ctx, y.Page)
	if err != nil {
		return errors.Wrapf(ErrConnection, "%s: %v", y.Page, err)
	}
	live, err := y.newLive(url, y.opts)
	if err != nil {
		return err
	}
	if y.live != nil {
		y.live.Release()
	}
	y.live = live
	return nil
}

func (y *YouTube) Grab() (*Image, error) {
	y.l.Lock()
	defer y.l.Unlock()
	if y.live == nil {
		return nil, ErrReleased
	}

	i, err := y.live.Grab()
	if err == nil {
		return i, nil
	}
	if errors.Is(err, ErrReleased) {
		return nil, err
	}

	log.WithField("page", y.Page).Warnf("Could not read frame (%v), attempting to reset stream", err)
	if rerr := y.reset(); rerr != nil {
		return nil, errors.Wrapf(ErrReadFailed, "failed to reset stream: %v", rerr)
	}
	return y.live.Grab()
}

func (y *YouTube) Release() {
	y.l.Lock()
	defer y.l.Unlock()
	if y.live != nil {
		y.live.Release()
		y.live = nil
	}
}
