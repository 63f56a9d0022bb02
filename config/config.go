package config

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"camstream/client"
	"camstream/video/process"
	"camstream/video/source"
)

// Config holds every runtime setting. It can be loaded from a JSON file and
// is overridden by command line flags.
type Config struct {
	Token    string `json:"token"`
	Detector string `json:"detector"`
	Endpoint string `json:"endpoint"`

	Stream     string `json:"stream"`
	StreamType string `json:"streamtype"`

	// FPS is the target capture rate; 0 captures as fast as possible.
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Crop   string  `json:"crop"`

	Motion               bool    `json:"motion"`
	MotionPixelThreshold float64 `json:"motion_pixel_threshold"`
	MotionValThreshold   int     `json:"motion_val_threshold"`
	PostMotionSec        float64 `json:"postmotion"`
	MaxIntervalSec       float64 `json:"maxinterval"`

	KeepConnectionOpen bool    `json:"keep_connection_open"`
	DrainFPS           float64 `json:"drain_fps"`

	// HTTPAddr serves metrics, previews and events when non-empty.
	HTTPAddr string `json:"http"`
	// Window shows forwarded frames in a local window.
	Window  bool `json:"window"`
	Verbose bool `json:"verbose"`
}

func Default() *Config {
	return &Config{
		Endpoint:             client.DefaultEndpoint,
		Stream:               "0",
		StreamType:           source.KindInfer.String(),
		FPS:                  1,
		MotionPixelThreshold: 1,
		MotionValThreshold:   20,
		PostMotionSec:        1,
		MaxIntervalSec:       1000,
		DrainFPS:             source.DefaultDrainFPS,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) PostMotion() time.Duration {
	return seconds(c.PostMotionSec)
}

func (c *Config) MaxInterval() time.Duration {
	return seconds(c.MaxIntervalSec)
}

// CropRegion parses Crop; an empty string means no crop.
func (c *Config) CropRegion() (*process.CropRegion, error) {
	if c.Crop == "" {
		return nil, nil
	}
	r, err := process.ParseCrop(c.Crop)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// finite reports whether n is a real number, rejecting NaN and infinities.
func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// Validate checks the settings that do not depend on the environment.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("an API token is required")
	}
	if c.Detector == "" {
		return errors.New("a detector ID is required")
	}
	if !finite(c.FPS) || c.FPS < 0 {
		return errors.Errorf("invalid fps %v: must be 0 or greater", c.FPS)
	}
	if !finite(c.DrainFPS) || c.DrainFPS < 0 {
		return errors.Errorf("invalid drain fps %v: must be 0 or greater", c.DrainFPS)
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if _, err := c.CropRegion(); err != nil {
		return err
	}
	if _, err := source.ParseKind(c.StreamType); err != nil {
		return err
	}
	return c.validateMotion()
}

func (c *Config) validateMotion() error {
	if !finite(c.MotionPixelThreshold) || c.MotionPixelThreshold < 0 || c.MotionPixelThreshold > 100 {
		return errors.Errorf("invalid motion pixel threshold %v: must be a percentage", c.MotionPixelThreshold)
	}
	if c.MotionValThreshold < 0 || c.MotionValThreshold > 255 {
		return errors.Errorf("invalid motion value threshold %d: must be between 0 and 255", c.MotionValThreshold)
	}
	if !finite(c.PostMotionSec) || c.PostMotionSec < 0 {
		return errors.Errorf("invalid post motion time %v", c.PostMotionSec)
	}
	if !finite(c.MaxIntervalSec) || c.MaxIntervalSec <= 0 {
		return errors.Errorf("invalid max interval %v: must be positive", c.MaxIntervalSec)
	}
	return nil
}
