package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kind identifies which Source implementation serves a stream identifier.
type Kind int

const (
	// KindInfer asks Describe to classify the identifier itself.
	KindInfer Kind = iota
	KindDevice
	KindDirectory
	KindRTSP
	KindHLS
	KindYouTube
	KindFile
	KindImageURL
)

var kindNames = map[Kind]string{
	KindInfer:     "infer",
	KindDevice:    "device",
	KindDirectory: "directory",
	KindRTSP:      "rtsp",
	KindHLS:       "hls",
	KindYouTube:   "youtube",
	KindFile:      "file",
	KindImageURL:  "image_url",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindNames lists the accepted --streamtype values.
func KindNames() []string {
	var names []string
	for k := KindInfer; k <= KindImageURL; k++ {
		names = append(names, k.String())
	}
	return names
}

// ParseKind maps a stream type name to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindInfer, nil
	}
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return KindInfer, fmt.Errorf("invalid stream type %q (want one of %s)", s, strings.Join(KindNames(), ", "))
}

// Infer classifies a raw stream identifier.
func Infer(raw string) (Kind, error) {
	lower := strings.ToLower(raw)
	switch {
	case raw == "":
		return KindInfer, fmt.Errorf("empty stream identifier")
	case isDigits(raw):
		return KindDevice, nil
	case strings.HasPrefix(lower, "rtsp://"):
		return KindRTSP, nil
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return KindYouTube, nil
	case strings.Contains(lower, ".m3u8"):
		return KindHLS, nil
	case strings.ContainsAny(raw, "*?["):
		return KindDirectory, nil
	}
	if fi, err := os.Stat(raw); err == nil && !fi.IsDir() {
		return KindFile, nil
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindImageURL, nil
	}
	return KindInfer, fmt.Errorf("cannot infer stream type for %q", raw)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Descriptor is a classified stream identifier, computed once at
// configuration time and consumed by Open.
type Descriptor struct {
	Kind Kind
	// URI is the path, glob or URL for every kind except KindDevice.
	URI string
	// Device is the capture device index for KindDevice.
	Device int
}

func (d Descriptor) String() string {
	if d.Kind == KindDevice {
		return fmt.Sprintf("%v:%d", d.Kind, d.Device)
	}
	return fmt.Sprintf("%v:%s", d.Kind, d.URI)
}

// Describe classifies raw according to kind, inferring the kind when it is
// KindInfer.
func Describe(raw string, kind Kind) (Descriptor, error) {
	if kind == KindInfer {
		k, err := Infer(raw)
		if err != nil {
			return Descriptor{}, err
		}
		kind = k
	}
	d := Descriptor{Kind: kind, URI: raw}
	if kind == KindDevice {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			return Descriptor{}, fmt.Errorf("device stream %q must be a non-negative integer", raw)
		}
		d.Device = id
		d.URI = ""
	}
	return d, nil
}
