package config

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// settle is how long to wait after a change event before reading the file,
// so editors that write in several steps are seen once.
const settle = time.Second / 10

// LoadInto decodes the JSON file at path over c. Fields missing from the file
// keep their current values.
func LoadInto(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()
	p := json.NewDecoder(f)
	p.DisallowUnknownFields()
	if err := p.Decode(c); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(c.redacted()))
	return nil
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if err := LoadInto(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) redacted() Config {
	r := *c
	if r.Token != "" {
		r.Token = "<redacted>"
	}
	return r
}

func waitForChange(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-watcher.Errors:
		return err
	case <-watcher.Events:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settle):
	}
	return ctx.Err()
}

// Watch reloads the file at path whenever it changes and passes each valid
// result to onChange, until ctx is done. Each reload is decoded over a copy of
// base, so settings missing from the file keep their startup values. Invalid
// files are logged and skipped.
func Watch(ctx context.Context, path string, base *Config, onChange func(*Config)) {
	start := *base
	go func() {
		for ctx.Err() == nil {
			if err := waitForChange(ctx, path); err != nil {
				if ctx.Err() == nil {
					log.Errorf("Error waiting for config change: %v", err)
					// The file may be mid-rename; try again shortly.
					time.Sleep(time.Second)
				}
				continue
			}

			c := start
			if err := LoadInto(path, &c); err != nil {
				log.Errorf("Failed to load new config: %v", err)
				continue
			}
			if err := c.validateMotion(); err != nil {
				log.Errorf("Ignoring new config: %v", err)
				continue
			}
			log.Infof("Reloaded configuration from %s", path)
			onChange(&c)
		}
	}()
}
