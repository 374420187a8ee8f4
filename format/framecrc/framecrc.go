// Package framecrc implements a sink that writes one checksum line per
// packet, in the layout of FFmpeg's framecrc format. It is used to compare
// pipeline output across runs without decoding it.
package framecrc

import (
	"bufio"
	"fmt"
	"hash/adler32"
	"io"

	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/avutil"
)

type Muxer struct {
	w       *bufio.Writer
	streams []av.Stream
}

func NewMuxer(w io.Writer) *Muxer {
	return &Muxer{w: bufio.NewWriter(w)}
}

func (self *Muxer) WriteHeader(streams []av.Stream) (err error) {
	self.streams = streams
	fmt.Fprintln(self.w, "#format: frame checksums")
	fmt.Fprintln(self.w, "#version: 2")
	fmt.Fprintln(self.w, "#hash: adler32")
	for i, stream := range streams {
		fmt.Fprintf(self.w, "#tb %d: %s\n", i, stream.TimeBase)
		fmt.Fprintf(self.w, "#media_type %d: %s\n", i, stream.Type())
		if stream.Codec != nil {
			fmt.Fprintf(self.w, "#codec_id %d: %s\n", i, stream.Codec.CodecName())
		}
		if codec, ok := stream.Codec.(av.VideoCodecData); ok && stream.Type() == av.VIDEO {
			fmt.Fprintf(self.w, "#dimensions %d: %dx%d\n", i, codec.Width(), codec.Height())
		}
		if codec, ok := stream.Codec.(av.AudioCodecData); ok && stream.Type() == av.AUDIO {
			fmt.Fprintf(self.w, "#sample_rate %d: %d\n", i, codec.SampleRate())
			fmt.Fprintf(self.w, "#channel_layout_name %d: %s\n", i, codec.ChannelLayout())
		}
	}
	fmt.Fprintln(self.w, "#stream#, dts,        pts, duration,     size, hash")
	return self.w.Flush()
}

func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if pkt.Idx < 0 || pkt.Idx >= len(self.streams) {
		err = errors.Errorf("framecrc: packet for unknown stream #%d", pkt.Idx)
		return
	}
	line := fmt.Sprintf("%d, %10s, %10s, %8d, %8d, 0x%08x",
		pkt.Idx, ts(pkt.DTS), ts(pkt.PTS), pkt.Duration, len(pkt.Data), adler32.Checksum(pkt.Data))
	if pkt.IsKeyFrame {
		line += ", K"
	}
	if _, err = fmt.Fprintln(self.w, line); err != nil {
		err = errors.Wrap(err, "framecrc")
	}
	return
}

func ts(v int64) string {
	if v == av.NoPTS {
		return "NOPTS"
	}
	return fmt.Sprint(v)
}

func (self *Muxer) WriteTrailer() (err error) {
	if err = self.w.Flush(); err != nil {
		err = errors.Wrap(err, "framecrc")
	}
	return
}

func Handler(h *avutil.RegisterHandler) {
	h.Name = "framecrc"
	h.Ext = ".crc"
	h.WriterMuxer = func(w io.Writer) av.Muxer {
		return NewMuxer(w)
	}
}
