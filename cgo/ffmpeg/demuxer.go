package ffmpeg

import (
	"io"
	"strconv"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
)

// DefaultReadTimeout bounds every blocking read of a network source.
const DefaultReadTimeout = 2 * time.Second

type OpenOptions struct {
	Format      string            // forced input format, empty to probe
	ReadTimeout time.Duration     // rw_timeout, 0 uses DefaultReadTimeout, <0 disables
	Options     map[string]string // extra demuxer options
}

func (self OpenOptions) dictionary() map[string]string {
	options := map[string]string{}
	for k, v := range self.Options {
		options[k] = v
	}
	timeout := self.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	if timeout > 0 {
		options["rw_timeout"] = strconv.FormatInt(int64(timeout/time.Microsecond), 10)
	}
	return options
}

type Demuxer struct {
	fc      *astiav.FormatContext
	pkt     *astiav.Packet
	streams []av.Stream
	uri     string
}

// Open opens uri and reads enough of it to describe every stream.
func Open(uri string, options OpenOptions) (_self *Demuxer, err error) {
	self := &Demuxer{uri: uri}
	if self.fc = astiav.AllocFormatContext(); self.fc == nil {
		err = errors.New("ffmpeg: alloc format context failed")
		return
	}

	var inputFormat *astiav.InputFormat
	if options.Format != "" {
		if inputFormat = astiav.FindInputFormat(options.Format); inputFormat == nil {
			self.fc.Free()
			err = errors.Errorf("ffmpeg: input format %s not found", options.Format)
			return
		}
	}
	var dict *astiav.Dictionary
	if dict, err = newDictionary(options.dictionary()); err != nil {
		self.fc.Free()
		return
	}
	defer dict.Free()

	if err = self.fc.OpenInput(uri, inputFormat, dict); err != nil {
		self.fc.Free()
		err = errors.Wrapf(err, "ffmpeg: open input %s", uri)
		return
	}
	if err = self.fc.FindStreamInfo(nil); err != nil {
		self.Close()
		err = errors.Wrapf(err, "ffmpeg: find stream info %s", uri)
		return
	}

	for _, s := range self.fc.Streams() {
		var codec CodecData
		if codec, err = newCodecData(s.CodecParameters()); err != nil {
			self.Close()
			return
		}
		stream := av.Stream{
			Idx:      s.Index(),
			TimeBase: fromRational(s.TimeBase()),
			Codec:    codec,
		}
		if stream.Type() == av.VIDEO {
			stream.FrameRate = fromRational(self.fc.GuessFrameRate(s, nil))
		}
		self.streams = append(self.streams, stream)
	}
	self.pkt = astiav.AllocPacket()

	_self = self
	return
}

func (self *Demuxer) Streams() (streams []av.Stream, err error) {
	if self.fc == nil {
		err = ErrClosed
		return
	}
	streams = self.streams
	return
}

func (self *Demuxer) ReadPacket() (pkt av.Packet, err error) {
	if self.fc == nil {
		err = ErrClosed
		return
	}
	if err = self.fc.ReadFrame(self.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			err = io.EOF
			return
		}
		err = errors.Wrapf(err, "ffmpeg: read %s", self.uri)
		return
	}
	pkt = packetFF2AV(self.pkt)
	self.pkt.Unref()
	return
}

func (self *Demuxer) Close() (err error) {
	if self.fc == nil {
		return
	}
	for _, stream := range self.streams {
		if codec, ok := stream.Codec.(CodecData); ok {
			codec.Free()
		}
	}
	if self.pkt != nil {
		self.pkt.Free()
	}
	self.fc.CloseInput()
	self.fc.Free()
	self.fc = nil
	return
}
