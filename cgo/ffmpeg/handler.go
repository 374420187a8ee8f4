package ffmpeg

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/avutil"
)

// Handler claims every locator not taken by an earlier handler, so it must
// be registered last.
func Handler(options OpenOptions) func(*avutil.RegisterHandler) {
	return func(h *avutil.RegisterHandler) {
		h.UrlDemuxer = func(uri string) (ok bool, demuxer av.DemuxCloser, err error) {
			ok = true
			var d *Demuxer
			if d, err = Open(uri, options); err == nil {
				demuxer = d
			}
			return
		}
		h.UrlMuxer = func(uri string, format string) (ok bool, muxer av.MuxCloser, err error) {
			ok = true
			var m *Muxer
			if m, err = Create(uri, format); err == nil {
				muxer = m
			}
			return
		}
	}
}

// TranscodeOptions selects FFmpeg encoders by name per media type. An empty
// name passes that media type through.
type TranscodeOptions struct {
	VideoCodec   string
	AudioCodec   string
	VideoOptions map[string]string
	AudioOptions map[string]string
	// GlobalHeader is required by containers that keep codec headers out of
	// band, see Muxer.NeedGlobalHeader.
	GlobalHeader bool
}

// ParseOptions parses "k=v,k=v" encoder options.
func ParseOptions(s string) map[string]string {
	options := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		if kv = strings.TrimSpace(kv); kv == "" {
			continue
		}
		if i := strings.IndexByte(kv, '='); i > 0 {
			options[kv[:i]] = kv[i+1:]
		} else {
			options[kv] = "1"
		}
	}
	return options
}

func (self TranscodeOptions) codec(typ av.MediaType) (name string, options map[string]string) {
	switch typ {
	case av.VIDEO:
		return self.VideoCodec, self.VideoOptions
	case av.AUDIO:
		return self.AudioCodec, self.AudioOptions
	}
	return
}

// FindDecoderEncoder opens a decoder for stream and an encoder producing the
// configured codec. It fits transcode.Options.FindDecoderEncoder.
func (self TranscodeOptions) FindDecoderEncoder(stream av.Stream, i int) (need bool, dec av.Decoder, enc av.Encoder, err error) {
	name, options := self.codec(stream.Type())
	if name == "" {
		return
	}

	var ffdec *Decoder
	if ffdec, err = NewDecoder(stream); err != nil {
		return
	}
	var ffenc *Encoder
	if ffenc, err = NewEncoderByName(name, ffdec); err != nil {
		ffdec.Close()
		return
	}
	ffenc.GlobalHeader = self.GlobalHeader
	for k, v := range options {
		if k == "b" {
			var bitrate int64
			if bitrate, err = parseBitrate(v); err != nil {
				break
			}
			ffenc.SetBitrate(bitrate)
			continue
		}
		ffenc.SetOption(k, v)
	}
	if err == nil {
		err = ffenc.Setup()
	}
	if err != nil {
		ffenc.Close()
		ffdec.Close()
		return
	}

	need, dec, enc = true, ffdec, ffenc
	return
}

// parseBitrate accepts a plain number of bits per second or one with a k or M
// suffix.
func parseBitrate(s string) (bitrate int64, err error) {
	mul := int64(1)
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mul, s = 1000, s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		mul, s = 1000000, s[:len(s)-1]
	}
	var n float64
	if n, err = strconv.ParseFloat(s, 64); err != nil || n <= 0 {
		err = errors.Errorf("ffmpeg: invalid bitrate %q", s)
		return
	}
	bitrate = int64(n * float64(mul))
	return
}
