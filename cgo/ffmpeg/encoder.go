package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
)

// Encoder is an av.Encoder over an FFmpeg codec context. Create it, set
// options, then call Setup. CodecData and the first SubmitFrame call Setup
// when needed.
type Encoder struct {
	cc      *astiav.CodecContext
	codec   *astiav.Codec
	pkt     *astiav.Packet
	options map[string]string

	// Parameters copied from the decoder.
	dec          *astiav.CodecContext
	GlobalHeader bool
	Bitrate      int64

	codecData *CodecData
	opened    bool
}

// NewEncoderByName creates an encoder that keeps the picture size or the
// sample layout of dec and only changes the compressed representation.
func NewEncoderByName(name string, dec *Decoder) (enc *Encoder, err error) {
	_enc := &Encoder{dec: dec.cc, options: map[string]string{}}
	if _enc.codec = astiav.FindEncoderByName(name); _enc.codec == nil {
		err = errors.Errorf("ffmpeg: cannot find encoder name=%s", name)
		return
	}
	if mediaTypeFF2AV(_enc.codec.MediaType()) != dec.typ {
		err = errors.Errorf("ffmpeg: encoder %s cannot encode %s", name, dec.typ)
		return
	}
	if _enc.cc = astiav.AllocCodecContext(_enc.codec); _enc.cc == nil {
		err = errors.New("ffmpeg: alloc encoder context failed")
		return
	}
	enc = _enc
	return
}

func (self *Encoder) SetOption(key string, val interface{}) (err error) {
	if self.opened {
		err = errors.Errorf("ffmpeg: SetOption %s after Setup", key)
		return
	}
	self.options[key] = fmt.Sprint(val)
	return
}

func (self *Encoder) SetBitrate(bitrate int64) (err error) {
	self.Bitrate = bitrate
	return
}

func (self *Encoder) Setup() (err error) {
	if self.opened {
		return
	}
	if self.cc == nil {
		err = ErrClosed
		return
	}
	cc, dec := self.cc, self.dec
	switch dec.MediaType() {
	case astiav.MediaTypeVideo:
		cc.SetWidth(dec.Width())
		cc.SetHeight(dec.Height())
		cc.SetPixelFormat(dec.PixelFormat())
		cc.SetSampleAspectRatio(dec.SampleAspectRatio())
		cc.SetFramerate(dec.Framerate())
	case astiav.MediaTypeAudio:
		cc.SetSampleRate(dec.SampleRate())
		cc.SetSampleFormat(dec.SampleFormat())
		cc.SetChannelLayout(dec.ChannelLayout())
	}
	if self.Bitrate > 0 {
		cc.SetBitRate(self.Bitrate)
	}
	cc.SetTimeBase(engineTimeBase)
	if self.GlobalHeader {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	var dict *astiav.Dictionary
	if dict, err = newDictionary(self.options); err != nil {
		return
	}
	defer dict.Free()
	if err = cc.Open(self.codec, dict); err != nil {
		err = errors.Wrapf(err, "ffmpeg: open encoder %s", self.codec.Name())
		return
	}
	// frames keep arriving in the engine unit
	cc.SetTimeBase(engineTimeBase)
	self.pkt = astiav.AllocPacket()
	self.opened = true
	return
}

func (self *Encoder) TimeBase() av.Rational {
	return av.EngineTimeBase
}

func (self *Encoder) CodecData() (codec av.CodecData, err error) {
	if err = self.Setup(); err != nil {
		return
	}
	if self.codecData == nil {
		params := astiav.AllocCodecParameters()
		if err = params.FromCodecContext(self.cc); err != nil {
			params.Free()
			err = errors.Wrap(err, "ffmpeg: encoder parameters")
			return
		}
		self.codecData = &CodecData{params: params}
	}
	codec = *self.codecData
	return
}

func (self *Encoder) SubmitFrame(frame *av.Frame) (err error) {
	if err = self.Setup(); err != nil {
		return
	}
	if frame == nil {
		if err = self.cc.SendFrame(nil); err != nil {
			err = errors.Wrap(err, "ffmpeg: encoder end of input")
		}
		return
	}
	f, ok := frame.Handle.(*astiav.Frame)
	if !ok {
		err = errors.Wrapf(ErrFrameHandle, "got %T", frame.Handle)
		return
	}
	defer f.Free()
	f.SetPts(frame.PTS)
	if err = self.cc.SendFrame(f); err != nil {
		err = errors.Wrap(err, "ffmpeg: encode")
	}
	return
}

func (self *Encoder) PullPacket() (pkt av.Packet, outcome av.Outcome, err error) {
	if !self.opened || self.cc == nil {
		err = ErrClosed
		return
	}
	if err = self.cc.ReceivePacket(self.pkt); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			err = nil
			outcome = av.Drained
		case errors.Is(err, astiav.ErrEof):
			err = nil
			outcome = av.Exhausted
		default:
			err = errors.Wrap(err, "ffmpeg: receive packet")
		}
		return
	}
	pkt = packetFF2AV(self.pkt)
	self.pkt.Unref()
	outcome = av.Produced
	return
}

func (self *Encoder) Close() (err error) {
	if self.cc == nil {
		return
	}
	if self.codecData != nil {
		self.codecData.Free()
	}
	if self.pkt != nil {
		self.pkt.Free()
	}
	self.cc.Free()
	self.cc = nil
	return
}
