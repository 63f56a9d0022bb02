package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"camstream/client"
	"camstream/config"
	"camstream/dispatch"
	"camstream/serve"
	"camstream/util"
	"camstream/video"
	"camstream/video/process"
	"camstream/video/sink"
	"camstream/video/source"
)

const helpText = `Captures frames from a video source and sends them to a detector for analysis.

Frames are taken at a fixed rate, optionally cropped, filtered by motion and
resized, then submitted by a pool of workers. Supported sources are devices,
directories of images, RTSP and HLS streams, YouTube live streams, video
files and image URLs.`

// Time allowed for dispatch workers to finish in-flight frames at shutdown.
const joinTimeout = 5 * time.Second

var (
	cfg        = config.Default()
	configPath string

	rootCmd = &cobra.Command{
		Use:          "camstream -t TOKEN -d DETECTOR",
		Short:        "Stream frames from a camera to a detector",
		Long:         helpText,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	bindFlags(rootCmd.Flags(), cfg)
	rootCmd.Flags().StringVar(&configPath, "config", "", "JSON config file; flags take precedence. Motion settings are reloaded on change.")
}

// bindFlags registers every setting of c as a flag, defaulting to its current
// value.
func bindFlags(f *pflag.FlagSet, c *config.Config) {
	f.StringVarP(&c.Token, "token", "t", c.Token, "API token for authentication.")
	f.StringVarP(&c.Detector, "detector", "d", c.Detector, "ID of the detector to submit frames to.")
	f.StringVarP(&c.Endpoint, "endpoint", "e", c.Endpoint, "API endpoint.")
	f.StringVarP(&c.Stream, "stream", "s", c.Stream, "Source: device number, file, glob, RTSP/HLS/YouTube URL or image URL.")
	f.StringVarP(&c.StreamType, "streamtype", "x", c.StreamType, "Source type, one of "+strings.Join(source.KindNames(), ", ")+".")
	f.Float64VarP(&c.FPS, "fps", "f", c.FPS, "Frames per second to capture; 0 for as fast as possible.")
	f.IntVarP(&c.Width, "width", "w", c.Width, "Resize frames to this width; 0 keeps the aspect ratio.")
	f.IntVarP(&c.Height, "height", "y", c.Height, "Resize frames to this height; 0 keeps the aspect ratio.")
	f.StringVarP(&c.Crop, "crop", "c", c.Crop, "Crop to x,y,w,h given as fractions of the frame.")
	f.BoolVarP(&c.Motion, "motion", "m", c.Motion, "Only submit frames when motion is detected.")
	f.Float64VarP(&c.MotionPixelThreshold, "motion_pixel_threshold", "r", c.MotionPixelThreshold, "Percentage of pixels that must change to count as motion.")
	f.IntVarP(&c.MotionValThreshold, "motion_val_threshold", "b", c.MotionValThreshold, "Change in a pixel's value needed to count it as changed.")
	f.Float64VarP(&c.PostMotionSec, "postmotion", "p", c.PostMotionSec, "Seconds to keep submitting frames after motion stops.")
	f.Float64VarP(&c.MaxIntervalSec, "maxinterval", "i", c.MaxIntervalSec, "Submit a frame at least this often in seconds, even without motion.")
	f.BoolVarP(&c.KeepConnectionOpen, "keep-connection-open", "k", c.KeepConnectionOpen, "Keep live streams open between frames; lower latency, more bandwidth.")
	f.Float64Var(&c.DrainFPS, "drain-fps", c.DrainFPS, "Rate at which an open live stream is drained.")
	f.BoolVar(&c.Window, "window", c.Window, "Show forwarded frames in a local window.")
	f.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Enable debug logging.")
	f.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "Address to serve metrics, MJPEG previews and events on; empty disables.")
}

// keepFlagged copies the value of every flag given on the command line onto
// c, so a reloaded config file cannot override them.
func keepFlagged(flags *pflag.FlagSet, c *config.Config) error {
	onto := pflag.NewFlagSet("reload", pflag.ContinueOnError)
	bindFlags(onto, c)
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if onto.Lookup(f.Name) == nil || err != nil {
			return
		}
		err = onto.Set(f.Name, f.Value.String())
	})
	return err
}

func setupLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// applyConfigFile loads path under the flags: values from the file replace
// defaults, flags given on the command line win.
func applyConfigFile(flags *pflag.FlagSet, path string) error {
	set := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	if err := config.LoadInto(path, cfg); err != nil {
		return err
	}
	for name, v := range set {
		if err := flags.Set(name, v); err != nil {
			return errors.Wrapf(err, "reapplying --%s", name)
		}
	}
	return nil
}

func printBanner(d *client.Detector, endpoint, whoami string) {
	motion := "disabled"
	if cfg.Motion {
		motion = "enabled"
	}
	rate := "unlimited"
	if cfg.FPS > 0 {
		rate = fmt.Sprintf("%g    (Seconds/frame: %.3f)", cfg.FPS, 1/cfg.FPS)
	}
	fmt.Println("==================================================")
	fmt.Println("Camstream")
	fmt.Printf("  Target Detector: %v\n", d)
	fmt.Printf("  Endpoint: %s\n", endpoint)
	fmt.Printf("  Whoami: %s\n", whoami)
	fmt.Printf("  Frames/sec: %s\n", rate)
	fmt.Printf("  Motion Detection: %s\n", motion)
	fmt.Println("==================================================")
}

func run(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if err := applyConfigFile(cmd.Flags(), configPath); err != nil {
			return err
		}
	}
	setupLogging(cfg.Verbose)
	if err := cfg.Validate(); err != nil {
		return err
	}

	kind, _ := source.ParseKind(cfg.StreamType)
	desc, err := source.Describe(cfg.Stream, kind)
	if err != nil {
		return err
	}
	crop, err := cfg.CropRegion()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := client.NewSubmitter(cfg.Endpoint, cfg.Token, cfg.Detector)
	hctx, hcancel := context.WithTimeout(ctx, 10*time.Second)
	whoami, err := sub.Whoami(hctx)
	if err != nil {
		hcancel()
		return errors.Wrap(err, "failed to authenticate")
	}
	log.Debugf("Client created, whoami=%s", whoami)
	det, err := sub.GetDetector(hctx)
	hcancel()
	if err != nil {
		return errors.Wrapf(err, "failed to look up detector %s", cfg.Detector)
	}
	printBanner(det, sub.Endpoint, whoami)

	log.Infof("Opening %v", desc)
	src, err := source.Open(desc, source.Options{
		TargetFPS:          cfg.FPS,
		KeepConnectionOpen: cfg.KeepConnectionOpen,
		DrainFPS:           cfg.DrainFPS,
	})
	if err != nil {
		return err
	}
	defer src.Release()

	stop := util.NewEvent()
	q := dispatch.NewQueue()
	sched := video.NewScheduler(src, q, video.SchedulerOptions{
		FPS:    cfg.FPS,
		Crop:   crop,
		Width:  cfg.Width,
		Height: cfg.Height,
	})

	if cfg.Motion {
		md := process.NewMotionDetector(cfg.MotionPixelThreshold, cfg.MotionValThreshold)
		defer md.Close()
		gate := process.NewMotionGate(cfg.PostMotion(), cfg.MaxInterval(), time.Now())
		sched.Detector = md
		sched.Gate = gate
		log.Infof("Motion detection enabled: %.2f%% of pixels changing by more than %d, post motion %v, max interval %v",
			cfg.MotionPixelThreshold, cfg.MotionValThreshold, cfg.PostMotion(), cfg.MaxInterval())

		if configPath != "" {
			flags := cmd.Flags()
			config.Watch(ctx, configPath, cfg, func(c *config.Config) {
				if err := keepFlagged(flags, c); err != nil {
					log.Errorf("Ignoring new config: %v", err)
					return
				}
				md.SetThresholds(c.MotionPixelThreshold, c.MotionValThreshold)
				gate.SetWindows(c.PostMotion(), c.MaxInterval())
				log.Infof("Motion settings now %.2f%%/%d, post motion %v, max interval %v",
					c.MotionPixelThreshold, c.MotionValThreshold, c.PostMotion(), c.MaxInterval())
			})
		}
	}

	var accepted sink.Tee
	if cfg.Window {
		accepted = append(accepted, sink.NewWindow("camstream"))
	}
	if cfg.HTTPAddr != "" {
		mjpeg := sink.NewMJPEGServer()
		raw := mjpeg.NewStream("raw")
		defer raw.Close()
		sched.Raw = raw
		accepted = append(accepted, mjpeg.NewStream("accepted"))

		events := serve.NewEvents()
		defer events.Close()
		sub.OnResult = events.OnResult

		go func() {
			if err := serve.Serve(ctx, cfg.HTTPAddr, serve.NewHandler(mjpeg, events)); err != nil {
				log.Errorf("HTTP server failed: %v", err)
			}
		}()
	}
	if len(accepted) > 0 {
		sched.Accepted = accepted
		defer accepted.Close()
	}

	pool := dispatch.NewPool(q, dispatch.WorkerCount(cfg.FPS), sub.Submit, stop)
	pool.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Infof("Caught signal %v, shutting down", sig)
			stop.Notify()
		case <-stop.Done():
		}
	}()

	daemon.SdNotify(false, daemon.SdNotifyReady)

	err = sched.Run(stop)
	if errors.Is(err, source.ErrExhausted) {
		// Let the workers finish what the source produced.
		for q.Len() > 0 && !stop.WaitTimeout(100*time.Millisecond) {
		}
		err = nil
	}
	stop.Notify()

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	pool.Join(joinTimeout)
	src.Release()
	q.Drain()
	log.Info("Shutdown complete")
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
