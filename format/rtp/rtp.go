// Package rtp implements a sink that sends every output stream as plain RTP
// over UDP, one port pair per stream starting at the locator's port.
package rtp

import (
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/pion/randutil"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/avutil"
	"github.com/tyrese/avtranscode/codec/h264parser"
)

var Debug bool

// DefaultMTU leaves room for IP and UDP headers on common paths.
const DefaultMTU = 1200

const headerSize = 12

var ErrUnsupportedCodec = errors.New("rtp: codec not supported")

type track struct {
	stream    av.Stream
	payload   payloadFormat
	payloader rtp.Payloader
	annexb    *h264parser.AnnexBConverter
	sequencer rtp.Sequencer
	ssrc      uint32
	tsbase    uint32
	lastts    uint32
	port      int
	w         io.WriteCloser
	packets   int
}

type Muxer struct {
	Host     string
	BasePort int
	MTU      int
	// Dial opens the transport of one stream, UDP when nil.
	Dial func(addr string) (io.WriteCloser, error)

	tracks []*track
	rand   randutil.MathRandomGenerator
}

func NewMuxer(host string, port int) *Muxer {
	return &Muxer{Host: host, BasePort: port, MTU: DefaultMTU}
}

func dialUDP(addr string) (io.WriteCloser, error) {
	return net.Dial("udp", addr)
}

// extradataCodec is implemented by codec data that carries a global header.
type extradataCodec interface {
	Extradata() []byte
}

func (self *Muxer) WriteHeader(streams []av.Stream) (err error) {
	if self.MTU <= headerSize {
		self.MTU = DefaultMTU
	}
	dial := self.Dial
	if dial == nil {
		dial = dialUDP
	}
	self.rand = randutil.NewMathRandomGenerator()

	for i, stream := range streams {
		t := &track{
			stream:    stream,
			sequencer: rtp.NewRandomSequencer(),
			ssrc:      self.rand.Uint32(),
			tsbase:    self.rand.Uint32(),
			port:      self.BasePort + 2*i,
		}
		if stream.Codec == nil {
			err = errors.Wrapf(ErrUnsupportedCodec, "stream #%d has no codec", i)
			return
		}
		var ok bool
		if t.payload, ok = lookupPayload(stream.Codec, i); !ok {
			err = errors.Wrapf(ErrUnsupportedCodec, "stream #%d %s", i, stream.Codec.CodecName())
			return
		}
		t.payloader = t.payload.newPayloader()
		if t.payload.encoding == "H264" {
			if codec, ok := stream.Codec.(extradataCodec); ok {
				if t.annexb, err = h264parser.NewAnnexBConverter(codec.Extradata()); err != nil {
					err = errors.Wrapf(err, "rtp: stream #%d", i)
					return
				}
				t.payload.fmtp = h264Fmtp(codec.Extradata())
			}
		}
		self.tracks = append(self.tracks, t)
	}

	for _, t := range self.tracks {
		addr := net.JoinHostPort(self.Host, strconv.Itoa(t.port))
		if t.w, err = dial(addr); err != nil {
			err = errors.Wrapf(err, "rtp: dial %s", addr)
			return
		}
		logrus.WithFields(logrus.Fields{"out": t.stream.Idx, "addr": addr, "pt": t.payload.pt}).
			Infof("rtp: sending %s/%d", t.payload.encoding, t.payload.clock)
	}
	return
}

// StreamTimeBase is the RTP clock of the stream, so packet timestamps map
// directly onto RTP timestamps.
func (self *Muxer) StreamTimeBase(idx int) av.Rational {
	return av.Rational{Num: 1, Den: int(self.tracks[idx].payload.clock)}
}

func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if pkt.Idx < 0 || pkt.Idx >= len(self.tracks) {
		err = errors.Errorf("rtp: packet for unknown stream #%d", pkt.Idx)
		return
	}
	t := self.tracks[pkt.Idx]

	data := pkt.Data
	if t.annexb != nil {
		if data, err = t.annexb.Convert(data, pkt.IsKeyFrame); err != nil {
			err = errors.Wrapf(err, "rtp: stream #%d", pkt.Idx)
			return
		}
	}

	ts := t.lastts
	if pkt.PTS != av.NoPTS {
		ts = t.tsbase + uint32(pkt.PTS)
	} else if pkt.DTS != av.NoPTS {
		ts = t.tsbase + uint32(pkt.DTS)
	}
	t.lastts = ts

	payloads := t.payloader.Payload(uint16(self.MTU-headerSize), data)
	for i, payload := range payloads {
		p := rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    t.payload.pt,
				SequenceNumber: t.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
				SSRC:           t.ssrc,
			},
			Payload: payload,
		}
		var b []byte
		if b, err = p.Marshal(); err != nil {
			err = errors.Wrap(err, "rtp: marshal")
			return
		}
		if _, err = t.w.Write(b); err != nil {
			err = errors.Wrapf(err, "rtp: send stream #%d", pkt.Idx)
			return
		}
		t.packets++
	}
	if Debug {
		logrus.Debugf("rtp: %s -> %d packets ts=%d", pkt, len(payloads), ts)
	}
	return
}

func (self *Muxer) WriteTrailer() (err error) {
	return
}

func (self *Muxer) Close() (err error) {
	for _, t := range self.tracks {
		if t.w == nil {
			continue
		}
		if cerr := t.w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		t.w = nil
	}
	return
}

// payloadFormat is the RTP payload description of one stream.
type payloadFormat struct {
	pt       uint8
	encoding string
	clock    uint32
	channels uint16
	fmtp     string
	media    string
}

func (self payloadFormat) newPayloader() rtp.Payloader {
	switch self.encoding {
	case "H264":
		return &codecs.H264Payloader{}
	case "VP8":
		return &codecs.VP8Payloader{EnablePictureID: true}
	case "VP9":
		return &codecs.VP9Payloader{}
	case "opus":
		return &codecs.OpusPayloader{}
	default:
		return &codecs.G711Payloader{}
	}
}

// lookupPayload maps a codec to its RTP payload format. Dynamic payload types
// are 96 plus the output index.
func lookupPayload(codec av.CodecData, idx int) (payload payloadFormat, ok bool) {
	dynamic := uint8(96 + idx)
	ok = true
	switch codec.CodecName() {
	case "h264":
		payload = payloadFormat{pt: dynamic, encoding: "H264", clock: 90000, fmtp: "packetization-mode=1", media: "video"}
	case "vp8":
		payload = payloadFormat{pt: dynamic, encoding: "VP8", clock: 90000, media: "video"}
	case "vp9":
		payload = payloadFormat{pt: dynamic, encoding: "VP9", clock: 90000, media: "video"}
	case "opus":
		payload = payloadFormat{pt: dynamic, encoding: "opus", clock: 48000, channels: 2, fmtp: "minptime=10;useinbandfec=1", media: "audio"}
	case "pcm_mulaw":
		payload = payloadFormat{pt: 0, encoding: "PCMU", clock: 8000, media: "audio"}
	case "pcm_alaw":
		payload = payloadFormat{pt: 8, encoding: "PCMA", clock: 8000, media: "audio"}
	default:
		ok = false
	}
	return
}

// Handler claims rtp://host:port locators. The pkt_size query sets the MTU.
func Handler(h *avutil.RegisterHandler) {
	h.UrlMuxer = func(uri string, format string) (ok bool, muxer av.MuxCloser, err error) {
		u, perr := url.Parse(uri)
		if perr != nil || u.Scheme != "rtp" {
			return
		}
		ok = true
		var port int
		if port, err = strconv.Atoi(u.Port()); err != nil || port <= 0 || port > 65535-1 {
			err = errors.Errorf("rtp: invalid port in %s", uri)
			return
		}
		m := NewMuxer(u.Hostname(), port)
		if mtu := u.Query().Get("pkt_size"); mtu != "" {
			if m.MTU, err = strconv.Atoi(mtu); err != nil {
				err = errors.Wrapf(err, "rtp: pkt_size in %s", uri)
				return
			}
		}
		muxer = m
		return
	}
}
