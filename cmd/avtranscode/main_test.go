package main

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/pktque"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags("avtranscode", []string{
		"-i", "in.mp4", "-o", "rtp://127.0.0.1:5004", "-vcodec", "libx264",
		"-vopt", "preset=veryfast,b=2M", "-rw-timeout", "5s", "-wait-keyframe",
		"-log-level", "debug",
	}, ioutil.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input != "in.mp4" || cfg.Output != "rtp://127.0.0.1:5004" || cfg.ReadTimeout != 5*time.Second {
		t.Fatalf("cfg %+v", cfg)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("level %s", cfg.LogLevel)
	}
	if filters := cfg.filters(); len(filters) != 1 {
		t.Fatalf("filters %v", filters)
	}
	topts := cfg.transcodeOptions()
	if topts == nil || topts.VideoCodec != "libx264" || topts.AudioCodec != "" || topts.VideoOptions["b"] != "2M" {
		t.Fatalf("transcode options %+v", topts)
	}

	cfg.Remux = true
	if cfg.transcodeOptions() != nil {
		t.Fatal("remux still transcodes")
	}
}

func TestParseFlagsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-i", "in.mp4"},
		{"-i", "in.mp4", "-o", "out.ts", "-log-level", "loud"},
		{"-bogus"},
	} {
		if _, err := parseFlags("avtranscode", args, ioutil.Discard); err == nil {
			t.Errorf("%v: no error", args)
		}
	}
}

type countDemuxer struct {
	reads  int
	closed bool
}

func (self *countDemuxer) Streams() ([]av.Stream, error) {
	return nil, nil
}

func (self *countDemuxer) ReadPacket() (av.Packet, error) {
	self.reads++
	return av.Packet{IsKeyFrame: true}, nil
}

func (self *countDemuxer) Close() error {
	self.closed = true
	return nil
}

func TestSourceEndsOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &countDemuxer{}
	s := newSource(ctx, src, pktque.Filters{&pktque.WaitKeyFrame{}})

	if _, err := s.ReadPacket(); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := s.ReadPacket(); err != io.EOF {
		t.Fatalf("after interrupt: %v", err)
	}
	if src.reads != 1 {
		t.Fatalf("%d reads", src.reads)
	}
	if err := s.Close(); err != nil || !src.closed {
		t.Fatal("source not closed")
	}
}

func TestRouter(t *testing.T) {
	r := newRouter()
	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/metrics": http.StatusOK,
		"/nothing": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != want {
			t.Errorf("%s: %d", path, rec.Code)
		}
	}
}
