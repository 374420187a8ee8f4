package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
)

// Muxer writes through an FFmpeg output format. The container may change the
// declared stream time units while writing the header, so it implements
// av.TimeBaseMuxer.
type Muxer struct {
	fc     *astiav.FormatContext
	pb     *astiav.IOContext
	pkt    *astiav.Packet
	uri    string
	header bool
}

// Create allocates the output context of uri. format may be empty to guess
// it from uri. Nothing is opened until WriteHeader.
func Create(uri string, format string) (_self *Muxer, err error) {
	self := &Muxer{uri: uri}
	if self.fc, err = astiav.AllocOutputFormatContext(nil, format, uri); err != nil {
		err = errors.Wrapf(err, "ffmpeg: alloc output %s", uri)
		return
	}
	if self.fc == nil {
		err = errors.Errorf("ffmpeg: no output format for %s", uri)
		return
	}
	self.pkt = astiav.AllocPacket()
	_self = self
	return
}

// NeedGlobalHeader reports whether encoders must put codec headers in
// extradata instead of in-band.
func (self *Muxer) NeedGlobalHeader() bool {
	return self.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

func (self *Muxer) WriteHeader(streams []av.Stream) (err error) {
	if self.fc == nil {
		err = ErrClosed
		return
	}
	for _, stream := range streams {
		var params *astiav.CodecParameters
		if params, err = codecParams(stream.Codec); err != nil {
			err = errors.Wrapf(err, "ffmpeg: output stream #%d", stream.Idx)
			return
		}
		s := self.fc.NewStream(nil)
		if s == nil {
			err = errors.Errorf("ffmpeg: new output stream #%d failed", stream.Idx)
			return
		}
		if err = params.Copy(s.CodecParameters()); err != nil {
			err = errors.Wrapf(err, "ffmpeg: output stream #%d parameters", stream.Idx)
			return
		}
		// the source container's tag may be invalid in this one
		s.CodecParameters().SetCodecTag(0)
		s.SetTimeBase(newRational(stream.TimeBase))
		if stream.FrameRate.Valid() {
			s.SetAvgFrameRate(newRational(stream.FrameRate))
		}
	}

	if !self.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		if self.pb, err = astiav.OpenIOContext(self.uri, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil); err != nil {
			err = errors.Wrapf(err, "ffmpeg: open %s", self.uri)
			return
		}
		self.fc.SetPb(self.pb)
	}

	if err = self.fc.WriteHeader(nil); err != nil {
		err = errors.Wrapf(err, "ffmpeg: write header %s", self.uri)
		return
	}
	self.header = true
	return
}

func (self *Muxer) StreamTimeBase(idx int) av.Rational {
	return fromRational(self.fc.Streams()[idx].TimeBase())
}

func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if !self.header {
		err = errors.New("ffmpeg: write packet before header")
		return
	}
	if err = packetAV2FF(&pkt, self.pkt); err != nil {
		return
	}
	// takes the packet reference, self.pkt is blank afterwards
	if err = self.fc.WriteInterleavedFrame(self.pkt); err != nil {
		self.pkt.Unref()
		err = errors.Wrapf(err, "ffmpeg: write packet #%d", pkt.Idx)
		return
	}
	return
}

func (self *Muxer) WriteTrailer() (err error) {
	if !self.header {
		err = errors.New("ffmpeg: write trailer before header")
		return
	}
	self.header = false
	if err = self.fc.WriteTrailer(); err != nil {
		err = errors.Wrapf(err, "ffmpeg: write trailer %s", self.uri)
		return
	}
	return
}

func (self *Muxer) Close() (err error) {
	if self.fc == nil {
		return
	}
	if self.pb != nil {
		err = self.pb.Close()
		self.pb = nil
	}
	self.pkt.Free()
	self.fc.Free()
	self.fc = nil
	return
}
