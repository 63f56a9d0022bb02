// Package client submits frames to the remote image analysis service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"camstream/video/source"
)

const (
	DefaultEndpoint = "https://api.groundlight.ai/device-api"
	DefaultTimeout  = 30 * time.Second

	tokenHeader = "x-api-token"
)

// ImageQuery is the service's acknowledgement of a submitted frame.
type ImageQuery struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	DetectorID string          `json:"detector_id"`
	CreatedAt  string          `json:"created_at"`
	Result     json.RawMessage `json:"result,omitempty"`
}

type Detector struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

func (d *Detector) String() string {
	return fmt.Sprintf("%s (%s) %q", d.Name, d.ID, d.Query)
}

// Result describes the outcome of one submission. It is passed to OnResult.
type Result struct {
	Captured time.Time
	Query    *ImageQuery
	Err      error
	Latency  time.Duration
}

// Submitter posts JPEG encoded frames to a detector.
//
// Submissions are fire-and-forget: the service queues the query and answers
// asynchronously, so Submit only reports whether the frame was accepted. A
// frame that fails to submit is not retried.
type Submitter struct {
	Endpoint string
	Token    string
	Detector string

	// OnResult, if set, is called after every submission.
	OnResult func(Result)

	client *http.Client
}

func NewSubmitter(endpoint, token, detector string) *Submitter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Submitter{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Token:    token,
		Detector: detector,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// EncodeJPEG encodes a frame for submission.
func EncodeJPEG(img *source.Image) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img.Mat)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode frame as JPEG")
	}
	defer buf.Close()
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (s *Submitter) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := s.Endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(tokenHeader, s.Token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (s *Submitter) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s %s: bad response", req.Method, req.URL.Path)
	}
	return nil
}

// Submit encodes img and posts it to the detector. It has the signature of a
// dispatch action.
func (s *Submitter) Submit(img *source.Image) error {
	start := time.Now()
	q, err := s.submit(context.Background(), img)
	if s.OnResult != nil {
		s.OnResult(Result{
			Captured: img.Time,
			Query:    q,
			Err:      err,
			Latency:  time.Since(start),
		})
	}
	return err
}

func (s *Submitter) submit(ctx context.Context, img *source.Image) (*ImageQuery, error) {
	start := time.Now()
	jpeg, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	log.Debugf("Encoded image to JPEG in %v", time.Since(start))

	query := url.Values{}
	query.Set("detector_id", s.Detector)
	query.Set("want_async", "true")
	req, err := s.newRequest(ctx, http.MethodPost, "/v1/image-queries", query, bytes.NewReader(jpeg))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	start = time.Now()
	q := &ImageQuery{}
	if err := s.do(req, q); err != nil {
		return nil, err
	}
	log.WithField("query", q.ID).Debugf("Submitted image query in %v", time.Since(start))
	return q, nil
}

// Whoami returns the user name the token belongs to.
func (s *Submitter) Whoami(ctx context.Context) (string, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/v1/me", nil, nil)
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := s.do(req, &me); err != nil {
		return "", err
	}
	return me.Username, nil
}

// GetDetector fetches the configured detector.
func (s *Submitter) GetDetector(ctx context.Context) (*Detector, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/v1/detectors/"+url.PathEscape(s.Detector), nil, nil)
	if err != nil {
		return nil, err
	}
	d := &Detector{}
	if err := s.do(req, d); err != nil {
		return nil, err
	}
	return d, nil
}
