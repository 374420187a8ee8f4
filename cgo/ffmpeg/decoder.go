package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
)

// Decoder is an av.Decoder over an FFmpeg codec context. Packets and frames
// use av.EngineTimeBase.
type Decoder struct {
	cc    *astiav.CodecContext
	pkt   *astiav.Packet
	typ   av.MediaType
	codec *astiav.Codec
}

func NewDecoder(stream av.Stream) (dec *Decoder, err error) {
	var params *astiav.CodecParameters
	if params, err = codecParams(stream.Codec); err != nil {
		return
	}

	_dec := &Decoder{typ: stream.Type()}
	if _dec.codec = astiav.FindDecoder(params.CodecID()); _dec.codec == nil {
		err = errors.Errorf("ffmpeg: cannot find decoder for %s", params.CodecID())
		return
	}
	if _dec.cc = astiav.AllocCodecContext(_dec.codec); _dec.cc == nil {
		err = errors.New("ffmpeg: alloc decoder context failed")
		return
	}
	if err = params.ToCodecContext(_dec.cc); err != nil {
		_dec.Close()
		err = errors.Wrap(err, "ffmpeg: decoder parameters")
		return
	}
	if stream.Type() == av.VIDEO && stream.FrameRate.Valid() {
		_dec.cc.SetFramerate(newRational(stream.FrameRate))
	}
	_dec.cc.SetTimeBase(engineTimeBase)
	if err = _dec.cc.Open(_dec.codec, nil); err != nil {
		_dec.Close()
		err = errors.Wrapf(err, "ffmpeg: open decoder %s", params.CodecID())
		return
	}
	// some decoders reset it while opening
	_dec.cc.SetTimeBase(engineTimeBase)
	_dec.pkt = astiav.AllocPacket()

	dec = _dec
	return
}

func (self *Decoder) TimeBase() av.Rational {
	return av.EngineTimeBase
}

func (self *Decoder) SubmitPacket(pkt *av.Packet) (err error) {
	if self.cc == nil {
		err = ErrClosed
		return
	}
	if pkt == nil {
		if err = self.cc.SendPacket(nil); err != nil {
			err = errors.Wrap(err, "ffmpeg: decoder end of input")
		}
		return
	}
	if err = packetAV2FF(pkt, self.pkt); err != nil {
		return
	}
	err = self.cc.SendPacket(self.pkt)
	self.pkt.Unref()
	if err != nil {
		err = errors.Wrap(err, "ffmpeg: decode")
	}
	return
}

func (self *Decoder) PullFrame() (frame av.Frame, outcome av.Outcome, err error) {
	if self.cc == nil {
		err = ErrClosed
		return
	}
	f := astiav.AllocFrame()
	if err = self.cc.ReceiveFrame(f); err != nil {
		f.Free()
		switch {
		case errors.Is(err, astiav.ErrEagain):
			err = nil
			outcome = av.Drained
		case errors.Is(err, astiav.ErrEof):
			err = nil
			outcome = av.Exhausted
		default:
			err = errors.Wrap(err, "ffmpeg: receive frame")
		}
		return
	}
	// let the encoder pick picture types
	f.SetPictureType(astiav.PictureTypeNone)
	frame = av.Frame{Type: self.typ, PTS: f.Pts(), Handle: f}
	outcome = av.Produced
	return
}

func (self *Decoder) Close() (err error) {
	if self.cc == nil {
		return
	}
	if self.pkt != nil {
		self.pkt.Free()
	}
	self.cc.Free()
	self.cc = nil
	return
}
