package source

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	// TargetFPS is the rate frames will be requested at. File sources use it
	// to decimate; 0 disables decimation.
	TargetFPS float64

	// KeepConnectionOpen applies to live sources (RTSP, HLS, YouTube). See
	// LiveOptions.KeepOpen.
	KeepConnectionOpen bool

	// DrainFPS bounds the background drain rate of kept-open live sources.
	DrainFPS float64
}

func (o Options) live() LiveOptions {
	return LiveOptions{
		KeepOpen: o.KeepConnectionOpen,
		DrainFPS: o.DrainFPS,
	}
}

// Open constructs the Source for a classified stream.
func Open(d Descriptor, opts Options) (Source, error) {
	clog := log.WithField("stream", d.String())
	if opts.KeepConnectionOpen {
		switch d.Kind {
		case KindRTSP, KindHLS, KindYouTube:
		default:
			clog.Warnf("Keeping the connection open is not supported for %v streams", d.Kind)
		}
	}

	switch d.Kind {
	case KindDevice:
		clog.Debugf("Opening capture device")
		return NewVideoCapture(d.Device)
	case KindDirectory:
		clog.Debugf("Opening image directory")
		return NewDirectory(d.URI)
	case KindRTSP, KindHLS:
		clog.Debugf("Opening live stream")
		return NewLiveCapture(d.URI, opts.live())
	case KindYouTube:
		clog.Debugf("Opening YouTube live stream")
		return NewYouTube(d.URI, opts.live())
	case KindFile:
		clog.Debugf("Opening video file")
		return NewFileCapture(d.URI, opts.TargetFPS)
	case KindImageURL:
		clog.Debugf("Opening image URL")
		return NewImageURL(d.URI), nil
	}
	return nil, fmt.Errorf("cannot create a source for %v", d)
}
