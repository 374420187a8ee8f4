package framecrc

import (
	"os"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/codec/fake"
)

func ExampleMuxer() {
	m := NewMuxer(os.Stdout)
	m.WriteHeader([]av.Stream{
		{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 1000}, Codec: fake.CodecData{Type_: av.VIDEO, Name_: "h264", Width_: 320, Height_: 240}},
		{Idx: 1, TimeBase: av.Rational{Num: 1, Den: 48000}, Codec: fake.CodecData{Type_: av.AUDIO, Name_: "opus", SampleRate_: 48000, ChannelLayout_: av.CH_STEREO}},
	})
	m.WritePacket(av.Packet{Idx: 0, PTS: 40, DTS: 0, Duration: 40, IsKeyFrame: true, Data: []byte("Wikipedia")})
	m.WritePacket(av.Packet{Idx: 1, PTS: 960, DTS: av.NoPTS, Duration: 960})
	m.WriteTrailer()
	// Output:
	// #format: frame checksums
	// #version: 2
	// #hash: adler32
	// #tb 0: 1/1000
	// #media_type 0: video
	// #codec_id 0: h264
	// #dimensions 0: 320x240
	// #tb 1: 1/48000
	// #media_type 1: audio
	// #codec_id 1: opus
	// #sample_rate 1: 48000
	// #channel_layout_name 1: 2ch
	// #stream#, dts,        pts, duration,     size, hash
	// 0,          0,         40,       40,        9, 0x11e60398, K
	// 1,      NOPTS,        960,      960,        0, 0x00000001
}
