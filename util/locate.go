package util

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// StreamlinkEnv names the environment variable that overrides the streamlink
// binary location.
const StreamlinkEnv = "STREAMLINK"

// LocateStreamlink returns the path to the streamlink binary, used to resolve
// YouTube live pages into playable HLS URLs.
func LocateStreamlink() (string, error) {
	return locate(StreamlinkEnv, "streamlink")
}

func locate(env, name string) (string, error) {
	if p := os.Getenv(env); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", errors.Wrapf(err, "%s=%s", env, p)
		}
		return p, nil
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "%s not found in $PATH", name)
	}
	return p, nil
}
