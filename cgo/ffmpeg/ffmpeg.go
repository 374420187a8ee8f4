// Package ffmpeg implements sources, sinks and codec engines on top of the
// FFmpeg libraries through go-astiav.
package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
)

var (
	ErrForeignCodecData = errors.New("ffmpeg: CodecData was not created by this package")
	ErrFrameHandle      = errors.New("ffmpeg: frame handle is not an *astiav.Frame")
	ErrClosed           = errors.New("ffmpeg: closed")
)

func init() {
	astiav.RegisterAllDevices()
}

// SetLogLevel maps a logrus level onto the FFmpeg log level.
func SetLogLevel(level logrus.Level) {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		astiav.SetLogLevel(astiav.LogLevelFatal)
	case logrus.ErrorLevel:
		astiav.SetLogLevel(astiav.LogLevelError)
	case logrus.WarnLevel:
		astiav.SetLogLevel(astiav.LogLevelWarning)
	case logrus.InfoLevel:
		astiav.SetLogLevel(astiav.LogLevelInfo)
	case logrus.DebugLevel:
		astiav.SetLogLevel(astiav.LogLevelVerbose)
	default:
		astiav.SetLogLevel(astiav.LogLevelDebug)
	}
}

func HasEncoder(name string) bool {
	return astiav.FindEncoderByName(name) != nil
}

func HasDecoder(name string) bool {
	return astiav.FindDecoderByName(name) != nil
}

func newRational(r av.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromRational(r astiav.Rational) av.Rational {
	return av.Rational{Num: r.Num(), Den: r.Den()}
}

var engineTimeBase = newRational(av.EngineTimeBase)

func mediaTypeFF2AV(typ astiav.MediaType) av.MediaType {
	switch typ {
	case astiav.MediaTypeVideo:
		return av.VIDEO
	case astiav.MediaTypeAudio:
		return av.AUDIO
	case astiav.MediaTypeSubtitle:
		return av.SUBTITLE
	case astiav.MediaTypeData:
		return av.DATA
	case astiav.MediaTypeAttachment:
		return av.ATTACHMENT
	default:
		return av.UNKNOWN
	}
}

func sampleFormatFF2AV(name string) av.SampleFormat {
	switch name {
	case "u8":
		return av.U8
	case "s16":
		return av.S16
	case "s32":
		return av.S32
	case "flt":
		return av.FLT
	case "dbl":
		return av.DBL
	case "u8p":
		return av.U8P
	case "s16p":
		return av.S16P
	case "s32p":
		return av.S32P
	case "fltp":
		return av.FLTP
	case "dblp":
		return av.DBLP
	default:
		return av.SampleFormat(0)
	}
}

// channelLayoutFF2AV keeps the channel count, which is all the av package
// layouts carry for logging and sink descriptions.
func channelLayoutFF2AV(channels int) av.ChannelLayout {
	switch channels {
	case 0:
		return av.ChannelLayout(0)
	case 1:
		return av.CH_MONO
	case 2:
		return av.CH_STEREO
	case 3:
		return av.CH_2POINT1
	case 4:
		return av.CH_3POINT1
	default:
		return av.ChannelLayout(1<<uint(channels) - 1)
	}
}

// CodecData owns a copy of FFmpeg codec parameters.
type CodecData struct {
	params *astiav.CodecParameters
}

func newCodecData(src *astiav.CodecParameters) (codec CodecData, err error) {
	params := astiav.AllocCodecParameters()
	if err = src.Copy(params); err != nil {
		params.Free()
		err = errors.Wrap(err, "ffmpeg: copy codec parameters")
		return
	}
	codec = CodecData{params: params}
	return
}

func (self CodecData) Type() av.MediaType {
	return mediaTypeFF2AV(self.params.MediaType())
}

func (self CodecData) CodecName() string {
	return self.params.CodecID().String()
}

func (self CodecData) Width() int {
	return self.params.Width()
}

func (self CodecData) Height() int {
	return self.params.Height()
}

func (self CodecData) SampleRate() int {
	return self.params.SampleRate()
}

func (self CodecData) SampleFormat() av.SampleFormat {
	return sampleFormatFF2AV(self.params.SampleFormat().String())
}

func (self CodecData) ChannelLayout() av.ChannelLayout {
	return channelLayoutFF2AV(self.params.ChannelLayout().Channels())
}

// Extradata returns the codec global header, e.g. H.264 SPS/PPS in AVCC form.
func (self CodecData) Extradata() []byte {
	return self.params.ExtraData()
}

func (self CodecData) Free() {
	if self.params != nil {
		self.params.Free()
	}
}

func codecParams(codec av.CodecData) (params *astiav.CodecParameters, err error) {
	ffcodec, ok := codec.(CodecData)
	if !ok || ffcodec.params == nil {
		err = ErrForeignCodecData
		return
	}
	params = ffcodec.params
	return
}

func packetFF2AV(pkt *astiav.Packet) av.Packet {
	data := pkt.Data()
	return av.Packet{
		Idx:        pkt.StreamIndex(),
		PTS:        pkt.Pts(),
		DTS:        pkt.Dts(),
		Duration:   pkt.Duration(),
		IsKeyFrame: pkt.Flags().Has(astiav.PacketFlagKey),
		Data:       append([]byte(nil), data...),
	}
}

func packetAV2FF(pkt *av.Packet, ffpkt *astiav.Packet) (err error) {
	if err = ffpkt.FromData(pkt.Data); err != nil {
		err = errors.Wrap(err, "ffmpeg: packet data")
		return
	}
	ffpkt.SetStreamIndex(pkt.Idx)
	ffpkt.SetPts(pkt.PTS)
	ffpkt.SetDts(pkt.DTS)
	ffpkt.SetDuration(pkt.Duration)
	if pkt.IsKeyFrame {
		ffpkt.SetFlags(ffpkt.Flags().Add(astiav.PacketFlagKey))
	}
	return
}

func newDictionary(options map[string]string) (dict *astiav.Dictionary, err error) {
	dict = astiav.NewDictionary()
	for k, v := range options {
		if err = dict.Set(k, v, 0); err != nil {
			dict.Free()
			dict = nil
			err = errors.Wrapf(err, "ffmpeg: option %s=%s", k, v)
			return
		}
	}
	return
}
