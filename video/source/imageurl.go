package source

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const imageURLTimeout = 10 * time.Second

// ImageURL fetches the image currently served at a URL. If the image is
// refreshed periodically, it is up to the caller to Grab at that frequency.
type ImageURL struct {
	URL string

	client *http.Client
}

func NewImageURL(url string) *ImageURL {
	return &ImageURL{
		URL:    url,
		client: &http.Client{Timeout: imageURLTimeout},
	}
}

func (u *ImageURL) Grab() (*Image, error) {
	start := time.Now()
	resp, err := u.client.Get(u.URL)
	if err != nil {
		return nil, errors.Wrapf(ErrReadFailed, "%s: %v", u.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrReadFailed, "%s: %s", u.URL, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrReadFailed, "%s: %v", u.URL, err)
	}

	m, err := gocv.IMDecode(b, gocv.IMReadUnchanged)
	if err != nil {
		return nil, errors.Wrapf(ErrReadFailed, "%s: %s", u.URL, decodeFailure(err, len(b)))
	}
	if m.Empty() {
		m.Close()
		return nil, errors.Wrapf(ErrReadFailed, "%s: %s", u.URL, decodeFailure(nil, len(b)))
	}
	log.Debugf("Read image from URL %s in %v", u.URL, time.Since(start))
	return WrapMat(m), nil
}

func decodeFailure(err error, n int) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("undecodable image (%d bytes)", n)
}

func (u *ImageURL) Release() {
	u.client.CloseIdleConnections()
}
