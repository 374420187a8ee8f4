package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av/pktque"
	"github.com/tyrese/avtranscode/cgo/ffmpeg"
)

type config struct {
	Input  string
	Output string
	Format string

	VideoCodec   string
	AudioCodec   string
	VideoOptions string
	AudioOptions string
	Remux        bool

	ReadTimeout  time.Duration
	WaitKeyFrame bool
	ZeroBase     bool
	Realtime     bool

	MetricsAddr string
	LogLevel    logrus.Level
	SDPFile     string
}

func parseFlags(name string, args []string, output io.Writer) (cfg config, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.Input, "i", "", "input locator (file or URL)")
	fs.StringVar(&cfg.Output, "o", "", "output locator (file, rtp://host:port, or any FFmpeg URL)")
	fs.StringVar(&cfg.Format, "f", "", "output format name, guessed from the output when empty")
	fs.StringVar(&cfg.VideoCodec, "vcodec", "", "video encoder name, empty passes video through")
	fs.StringVar(&cfg.AudioCodec, "acodec", "", "audio encoder name, empty passes audio through")
	fs.StringVar(&cfg.VideoOptions, "vopt", "", "video encoder options as k=v,k=v")
	fs.StringVar(&cfg.AudioOptions, "aopt", "", "audio encoder options as k=v,k=v")
	fs.BoolVar(&cfg.Remux, "remux", false, "pass every track through, ignoring -vcodec and -acodec")
	fs.DurationVar(&cfg.ReadTimeout, "rw-timeout", ffmpeg.DefaultReadTimeout, "source read timeout, negative disables")
	fs.BoolVar(&cfg.WaitKeyFrame, "wait-keyframe", false, "drop input until the first video key frame")
	fs.BoolVar(&cfg.ZeroBase, "zero-base", false, "rebase input timestamps to start at zero")
	fs.BoolVar(&cfg.Realtime, "realtime", false, "read input no faster than real time")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&cfg.SDPFile, "sdp", "", "write the SDP of an rtp output to this file")
	level := fs.String("log-level", "info", "log level")

	if err = fs.Parse(args); err != nil {
		return
	}
	if cfg.Input == "" || cfg.Output == "" {
		err = errors.New("-i and -o are required")
	} else {
		cfg.LogLevel, err = logrus.ParseLevel(*level)
	}
	if err != nil {
		fmt.Fprintln(output, err)
		fs.Usage()
	}
	return
}

func (self config) filters() (filters pktque.Filters) {
	if self.WaitKeyFrame {
		filters = append(filters, &pktque.WaitKeyFrame{})
	}
	if self.ZeroBase {
		filters = append(filters, &pktque.FixTime{StartFromZero: true})
	}
	if self.Realtime {
		filters = append(filters, &pktque.Walltime{})
	}
	return
}

// transcodeOptions returns nil when every track passes through.
func (self config) transcodeOptions() *ffmpeg.TranscodeOptions {
	if self.Remux || (self.VideoCodec == "" && self.AudioCodec == "") {
		return nil
	}
	return &ffmpeg.TranscodeOptions{
		VideoCodec:   self.VideoCodec,
		AudioCodec:   self.AudioCodec,
		VideoOptions: ffmpeg.ParseOptions(self.VideoOptions),
		AudioOptions: ffmpeg.ParseOptions(self.AudioOptions),
	}
}
