// Command avtranscode copies a media source into a sink, re-encoding the
// audio and video tracks named by -vcodec and -acodec and passing every other
// track through.
package main

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/avutil"
	"github.com/tyrese/avtranscode/av/pktque"
	"github.com/tyrese/avtranscode/av/transcode"
	"github.com/tyrese/avtranscode/cgo/ffmpeg"
	"github.com/tyrese/avtranscode/format"
	"github.com/tyrese/avtranscode/format/rtp"
	"github.com/tyrese/avtranscode/internal/metrics"
)

func main() {
	cfg, err := parseFlags(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ffmpeg.SetLogLevel(cfg.LogLevel)
	transcode.Debug = cfg.LogLevel >= logrus.TraceLevel
	rtp.Debug = transcode.Debug

	format.RegisterAll(ffmpeg.OpenOptions{ReadTimeout: cfg.ReadTimeout})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg); err != nil {
		entry := logrus.WithError(err)
		var terr *transcode.Error
		if errors.As(err, &terr) {
			entry = entry.WithFields(logrus.Fields{"kind": terr.Kind, "track": terr.Track, "phase": terr.Phase})
		}
		entry.Error("avtranscode: failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) (err error) {
	var src av.DemuxCloser
	if src, err = avutil.Open(cfg.Input); err != nil {
		return
	}
	var dst av.MuxCloser
	if dst, err = avutil.CreateFormat(cfg.Output, cfg.Format); err != nil {
		src.Close()
		return
	}

	options := transcode.Options{
		Logger:   logrus.StandardLogger(),
		Observer: metrics.NewPipelineObserver(),
	}
	if topts := cfg.transcodeOptions(); topts != nil {
		if m, ok := dst.(*ffmpeg.Muxer); ok {
			topts.GlobalHeader = m.NeedGlobalHeader()
		}
		options.FindDecoderEncoder = topts.FindDecoderEncoder
	}

	// the pipeline owns src and dst from here on
	var pipe *transcode.Pipeline
	if pipe, err = transcode.NewPipeline(newSource(ctx, src, cfg.filters()), dst, options); err != nil {
		return
	}
	defer pipe.Close()

	if m, ok := dst.(*rtp.Muxer); ok && cfg.SDPFile != "" {
		var b []byte
		if b, err = m.SDP(); err != nil {
			return
		}
		if err = ioutil.WriteFile(cfg.SDPFile, b, 0644); err != nil {
			return
		}
		logrus.WithField("file", cfg.SDPFile).Info("avtranscode: SDP written")
	}

	done, cancel := context.WithCancel(ctx)
	defer cancel()
	g, done := errgroup.WithContext(done)

	g.Go(func() error {
		defer cancel()
		start := time.Now()
		if err := pipe.Run(); err != nil {
			return err
		}
		for _, t := range pipe.Tracks() {
			logrus.WithFields(logrus.Fields{"track": t.Idx, "out": t.Out, "state": t.State()}).
				Infof("avtranscode: %d packets in, %d out", t.PacketsIn, t.PacketsOut)
		}
		logrus.WithField("elapsed", time.Since(start)).Info("avtranscode: done")
		return nil
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logrus.WithField("addr", cfg.MetricsAddr).Info("avtranscode: metrics listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-done.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	}).Methods("GET")
	return r
}

// source ends the input when ctx is done, so an interrupted run still
// flushes every track and writes the trailer.
type source struct {
	av.Demuxer
	closer io.Closer
	ctx    context.Context
}

func newSource(ctx context.Context, src av.DemuxCloser, filters pktque.Filters) *source {
	var demuxer av.Demuxer = src
	if len(filters) > 0 {
		demuxer = &pktque.FilterDemuxer{Demuxer: src, Filter: filters}
	}
	return &source{Demuxer: demuxer, closer: src, ctx: ctx}
}

func (self *source) ReadPacket() (pkt av.Packet, err error) {
	if self.ctx.Err() != nil {
		logrus.Warn("avtranscode: interrupted, ending input")
		err = io.EOF
		return
	}
	return self.Demuxer.ReadPacket()
}

func (self *source) Close() error {
	return self.closer.Close()
}
