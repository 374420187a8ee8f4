// Package transcode implements a Pipeline that copies a Demuxer into a Muxer,
// decoding and re-encoding the tracks an Options callback selects and passing
// every other retained track through.
package transcode

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
)

// Debug logs every written packet at debug level.
var Debug bool

type Options struct {
	// FindDecoderEncoder checks if transcode is needed for the i-th source
	// stream, and creates the Decoder and Encoder. Both must be returned when
	// need is true. Nil means every track passes through.
	FindDecoderEncoder func(stream av.Stream, i int) (need bool, dec av.Decoder, enc av.Encoder, err error)
	Logger             logrus.FieldLogger // defaults to logrus.StandardLogger()
	Observer           Observer
}

// Pipeline owns a source, a sink and the context of every retained track.
type Pipeline struct {
	src      av.Demuxer
	dst      av.Muxer
	tracks   map[int]*Track // by source index, absent means dropped
	ordered  []*Track       // by output index
	log      logrus.FieldLogger
	observer Observer
	ran      bool
	closed   bool
}

// NewPipeline reads the source streams, opens engines for the selected
// tracks and writes the sink header. On failure everything already opened is
// released.
func NewPipeline(src av.Demuxer, dst av.Muxer, options Options) (_self *Pipeline, err error) {
	self := &Pipeline{
		src:      src,
		dst:      dst,
		tracks:   map[int]*Track{},
		log:      options.Logger,
		observer: options.Observer,
	}
	if self.log == nil {
		self.log = logrus.StandardLogger()
	}
	if self.observer == nil {
		self.observer = nopObserver{}
	}
	defer func() {
		if err != nil {
			self.Close()
		}
	}()

	var streams []av.Stream
	if streams, err = src.Streams(); err != nil {
		err = newError(KindSource, NoTrack, PhaseStreams, err)
		return
	}

	var outstreams []av.Stream
	for i, stream := range streams {
		if !stream.Type().Retained() {
			self.log.WithFields(logrus.Fields{"track": stream.Idx, "type": stream.Type()}).Info("transcode: track dropped")
			continue
		}
		if _, dup := self.tracks[stream.Idx]; dup {
			err = newError(KindSetup, stream.Idx, PhaseStreams, errors.New("duplicate stream index"))
			return
		}

		t := &Track{
			Idx:    stream.Idx,
			Out:    len(self.ordered),
			Stream: stream,
			pipe:   self,
		}
		t.log = self.log.WithFields(logrus.Fields{"track": t.Idx, "out": t.Out, "type": stream.Type()})
		self.tracks[t.Idx] = t
		self.ordered = append(self.ordered, t)

		outstream := av.Stream{
			Idx:       t.Out,
			TimeBase:  stream.TimeBase,
			FrameRate: stream.FrameRate,
			Codec:     stream.Codec,
		}
		if stream.Type().Transcodable() && options.FindDecoderEncoder != nil {
			var need bool
			var dec av.Decoder
			var enc av.Encoder
			need, dec, enc, err = options.FindDecoderEncoder(stream, i)
			// keep whatever was opened so Close releases it
			t.dec, t.enc = dec, enc
			if err != nil {
				err = t.fail(KindSetup, PhaseOpen, err)
				return
			}
			if !need {
				t.dec, t.enc = nil, nil
				closeEngines(dec, enc)
			} else {
				if dec == nil || enc == nil {
					err = t.fail(KindSetup, PhaseOpen, ErrHalfTranscoded)
					return
				}
				if outstream.Codec, err = enc.CodecData(); err != nil {
					err = t.fail(KindSetup, PhaseOpen, err)
					return
				}
				outstream.TimeBase = enc.TimeBase()
			}
		}
		outstreams = append(outstreams, outstream)

		t.log.WithField("phase", PhaseOpen).Infof("transcode: %s %s -> %s", t.State(), stream, outstream)
	}

	if err = dst.WriteHeader(outstreams); err != nil {
		err = newError(KindSink, NoTrack, PhaseHeader, err)
		return
	}
	tbmuxer, _ := dst.(av.TimeBaseMuxer)
	for _, t := range self.ordered {
		t.OutTimeBase = outstreams[t.Out].TimeBase
		if tbmuxer != nil {
			if tb := tbmuxer.StreamTimeBase(t.Out); tb.Valid() {
				t.OutTimeBase = tb
			}
		}
	}

	_self = self
	return
}

// Tracks returns the retained tracks in output order.
func (self *Pipeline) Tracks() []*Track {
	return self.ordered
}

// Track returns the context of a source track, nil when it was dropped.
func (self *Pipeline) Track(idx int) *Track {
	return self.tracks[idx]
}

// Run copies the source into the sink until the source ends, then flushes
// every transcoded track in output order and writes the trailer. The first
// failure stops the run and is returned as *Error.
func (self *Pipeline) Run() (err error) {
	if self.closed {
		return ErrClosed
	}
	if self.ran {
		return ErrAlreadyRun
	}
	self.ran = true

	for {
		var pkt av.Packet
		if pkt, err = self.src.ReadPacket(); err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			err = newError(KindSource, NoTrack, PhaseRead, err)
			return
		}

		t := self.tracks[pkt.Idx]
		self.observer.PacketRead(t)
		if t == nil {
			continue
		}
		t.PacketsIn++
		if t.Transcoded() {
			err = t.transcode(pkt)
		} else {
			err = t.passthrough(pkt)
		}
		if err != nil {
			self.log.WithError(err).Error("transcode: run stopped")
			return
		}
	}

	for _, t := range self.ordered {
		if t.State() == Passthrough || t.State() == Finished {
			continue
		}
		if err = t.flush(); err != nil {
			self.log.WithError(err).Error("transcode: flush stopped")
			return
		}
		t.log.WithField("phase", PhaseFlush).Infof("transcode: flushed, %d frames, %d packets out", t.FramesEncoded, t.PacketsOut)
	}

	if err = self.dst.WriteTrailer(); err != nil {
		err = newError(KindSink, NoTrack, PhaseTrailer, err)
		return
	}
	return
}

// Close releases every engine, then closes the source and sink when they
// implement io.Closer. It is safe to call more than once.
func (self *Pipeline) Close() (err error) {
	if self.closed {
		return
	}
	self.closed = true

	for _, t := range self.ordered {
		if cerr := closeEngines(t.dec, t.enc); cerr != nil && err == nil {
			err = cerr
		}
	}
	for _, h := range []interface{}{self.src, self.dst} {
		if closer, ok := h.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return
}

func closeEngines(dec av.Decoder, enc av.Encoder) (err error) {
	if dec != nil {
		err = dec.Close()
	}
	if enc != nil {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return
}
