// Package avutil resolves locators to sources and sinks through registered
// handlers, and copies sources into sinks.
package avutil

import (
	"io"
	"net/url"
	"os"
	"path"

	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/transcode"
)

// HandlerMuxer wraps a muxer created over a file. WriteHeader and
// WriteTrailer happen at most once, Close writes a missing trailer before
// closing the file.
type HandlerMuxer struct {
	av.Muxer
	w       io.WriteCloser
	streams []av.Stream
	stage   int
}

func (self *HandlerMuxer) WriteHeader(streams []av.Stream) (err error) {
	if self.stage == 0 {
		if err = self.Muxer.WriteHeader(streams); err != nil {
			return
		}
		self.streams = streams
		self.stage++
	}
	return
}

// StreamTimeBase returns the unit chosen by the wrapped muxer, or the
// declared unit when it does not choose one.
func (self *HandlerMuxer) StreamTimeBase(idx int) av.Rational {
	if tbmuxer, ok := self.Muxer.(av.TimeBaseMuxer); ok {
		return tbmuxer.StreamTimeBase(idx)
	}
	return self.streams[idx].TimeBase
}

func (self *HandlerMuxer) WriteTrailer() (err error) {
	if self.stage == 1 {
		self.stage++
		if err = self.Muxer.WriteTrailer(); err != nil {
			return
		}
	}
	return
}

func (self *HandlerMuxer) Close() (err error) {
	if err = self.WriteTrailer(); err != nil {
		self.w.Close()
		return
	}
	return self.w.Close()
}

type RegisterHandler struct {
	Name        string // format name accepted by CreateFormat
	Ext         string // file extension including the dot
	WriterMuxer func(io.Writer) av.Muxer
	// UrlMuxer and UrlDemuxer claim a locator by returning ok. format may be
	// empty.
	UrlMuxer   func(uri string, format string) (ok bool, muxer av.MuxCloser, err error)
	UrlDemuxer func(uri string) (ok bool, demuxer av.DemuxCloser, err error)
}

type Handlers struct {
	handlers []RegisterHandler
}

func (self *Handlers) Add(fn func(*RegisterHandler)) {
	handler := &RegisterHandler{}
	fn(handler)
	self.handlers = append(self.handlers, *handler)
}

func (self *Handlers) Open(uri string) (demuxer av.DemuxCloser, err error) {
	for _, handler := range self.handlers {
		if handler.UrlDemuxer != nil {
			var ok bool
			if ok, demuxer, err = handler.UrlDemuxer(uri); ok {
				if err != nil {
					err = errors.Wrapf(err, "avutil: open %s", uri)
				}
				return
			}
		}
	}
	err = errors.Errorf("avutil: open %s failed, no handler", uri)
	return
}

func (self *Handlers) Create(uri string) (muxer av.MuxCloser, err error) {
	return self.CreateFormat(uri, "")
}

// CreateFormat creates a sink for uri. A non-empty format selects the handler
// by name, otherwise URL handlers are tried in order and then the extension.
func (self *Handlers) CreateFormat(uri string, format string) (muxer av.MuxCloser, err error) {
	var ext string
	if u, _ := url.Parse(uri); u != nil && u.Scheme != "" {
		ext = path.Ext(u.Path)
	} else {
		ext = path.Ext(uri)
	}

	for _, handler := range self.handlers {
		if handler.WriterMuxer == nil {
			continue
		}
		if (format != "" && handler.Name == format) || (format == "" && ext != "" && handler.Ext == ext) {
			var w io.WriteCloser
			if w, err = os.Create(uri); err != nil {
				err = errors.Wrap(err, "avutil")
				return
			}
			muxer = &HandlerMuxer{
				Muxer: handler.WriterMuxer(w),
				w:     w,
			}
			return
		}
	}

	for _, handler := range self.handlers {
		if handler.UrlMuxer != nil {
			var ok bool
			if ok, muxer, err = handler.UrlMuxer(uri, format); ok {
				if err != nil {
					err = errors.Wrapf(err, "avutil: create %s", uri)
				}
				return
			}
		}
	}

	err = errors.Errorf("avutil: create muxer %s failed, no handler", uri)
	return
}

var DefaultHandlers = &Handlers{}

func AddHandler(fn func(*RegisterHandler)) {
	DefaultHandlers.Add(fn)
}

func Open(url string) (demuxer av.DemuxCloser, err error) {
	return DefaultHandlers.Open(url)
}

func Create(url string) (muxer av.MuxCloser, err error) {
	return DefaultHandlers.Create(url)
}

func CreateFormat(url string, format string) (muxer av.MuxCloser, err error) {
	return DefaultHandlers.CreateFormat(url, format)
}

// CopyPackets writes every packet of src to dst unchanged until io.EOF.
func CopyPackets(dst av.PacketWriter, src av.PacketReader) (err error) {
	for {
		var pkt av.Packet
		if pkt, err = src.ReadPacket(); err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return
		}
		if err = dst.WritePacket(pkt); err != nil {
			return
		}
	}
	return
}

// CopyFile remuxes src into dst: every audio, video and subtitle track is
// passed through with its timestamps converted to the sink's units. src and
// dst are not closed.
func CopyFile(dst av.Muxer, src av.Demuxer) (err error) {
	var pipe *transcode.Pipeline
	if pipe, err = transcode.NewPipeline(noClose{src}, noCloseMuxer{dst}, transcode.Options{}); err != nil {
		return
	}
	defer pipe.Close()
	return pipe.Run()
}

// noClose hides Close from the pipeline so the caller keeps ownership.
type noClose struct {
	av.Demuxer
}

type noCloseMuxer struct {
	av.Muxer
}

// StreamTimeBase returns the zero Rational when dst keeps the declared units.
func (self noCloseMuxer) StreamTimeBase(idx int) (tb av.Rational) {
	if tbmuxer, ok := self.Muxer.(av.TimeBaseMuxer); ok {
		return tbmuxer.StreamTimeBase(idx)
	}
	return
}
