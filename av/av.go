// Package av defines basic interfaces and data structures of container demux/mux and codec engines.
package av

import (
	"fmt"
)

// Media type of a track.
type MediaType uint8

const (
	UNKNOWN = MediaType(iota)
	VIDEO
	AUDIO
	DATA
	SUBTITLE
	ATTACHMENT
)

func (self MediaType) String() string {
	switch self {
	case VIDEO:
		return "video"
	case AUDIO:
		return "audio"
	case DATA:
		return "data"
	case SUBTITLE:
		return "subtitle"
	case ATTACHMENT:
		return "attachment"
	default:
		return "unknown"
	}
}

// Retained reports whether tracks of this type survive track filtering.
// Only audio, video and subtitle tracks are ever written to an output.
func (self MediaType) Retained() bool {
	switch self {
	case VIDEO, AUDIO, SUBTITLE:
		return true
	}
	return false
}

// Transcodable reports whether tracks of this type can be decoded and re-encoded.
func (self MediaType) Transcodable() bool {
	return self == VIDEO || self == AUDIO
}

// Audio sample format.
type SampleFormat uint8

const (
	U8 = SampleFormat(iota + 1) // 8-bit unsigned integer
	S16                         // signed 16-bit integer
	S32                         // signed 32-bit integer
	FLT                         // 32-bit float
	DBL                         // 64-bit float
	U8P                         // 8-bit unsigned integer in planar
	S16P                        // signed 16-bit integer in planar
	S32P                        // signed 32-bit integer in planar
	FLTP                        // 32-bit float in planar
	DBLP                        // 64-bit float in planar
)

func (self SampleFormat) BytesPerSample() int {
	switch self {
	case U8, U8P:
		return 1
	case S16, S16P:
		return 2
	case FLT, FLTP, S32, S32P:
		return 4
	case DBL, DBLP:
		return 8
	default:
		return 0
	}
}

func (self SampleFormat) String() string {
	switch self {
	case U8:
		return "u8"
	case S16:
		return "s16"
	case S32:
		return "s32"
	case FLT:
		return "flt"
	case DBL:
		return "dbl"
	case U8P:
		return "u8p"
	case S16P:
		return "s16p"
	case S32P:
		return "s32p"
	case FLTP:
		return "fltp"
	case DBLP:
		return "dblp"
	default:
		return "?"
	}
}

// Check if this sample format is in planar.
func (self SampleFormat) IsPlanar() bool {
	switch self {
	case U8P, S16P, S32P, FLTP, DBLP:
		return true
	default:
		return false
	}
}

// Audio channel layout.
type ChannelLayout uint16

func (self ChannelLayout) String() string {
	return fmt.Sprintf("%dch", self.Count())
}

const (
	CH_FRONT_CENTER = ChannelLayout(1 << iota)
	CH_FRONT_LEFT
	CH_FRONT_RIGHT
	CH_BACK_CENTER
	CH_BACK_LEFT
	CH_BACK_RIGHT
	CH_SIDE_LEFT
	CH_SIDE_RIGHT
	CH_LOW_FREQ
	CH_NR

	CH_MONO     = ChannelLayout(CH_FRONT_CENTER)
	CH_STEREO   = ChannelLayout(CH_FRONT_LEFT | CH_FRONT_RIGHT)
	CH_2_1      = ChannelLayout(CH_STEREO | CH_BACK_CENTER)
	CH_2POINT1  = ChannelLayout(CH_STEREO | CH_LOW_FREQ)
	CH_SURROUND = ChannelLayout(CH_STEREO | CH_FRONT_CENTER)
	CH_3POINT1  = ChannelLayout(CH_SURROUND | CH_LOW_FREQ)
)

func (self ChannelLayout) Count() (n int) {
	for self != 0 {
		n++
		self = (self - 1) & self
	}
	return
}

// CodecData describes a track's codec identity and parameters, enough for a
// decoder to be opened or for a muxer to declare the track.
//
// It can be converted to VideoCodecData or AudioCodecData using:
//
//	codecdata.(AudioCodecData) or codecdata.(VideoCodecData)
//
// Implementations backed by a codec library may carry native parameters that
// only the same library understands (e.g. ffmpeg.CodecData).
type CodecData interface {
	Type() MediaType  // Video/Audio/Subtitle/...
	CodecName() string // e.g. "h264", "aac", "mov_text"
}

type VideoCodecData interface {
	CodecData
	Width() int  // Video width
	Height() int // Video height
}

type AudioCodecData interface {
	CodecData
	SampleFormat() SampleFormat   // audio sample format
	SampleRate() int              // audio sample rate
	ChannelLayout() ChannelLayout // audio channel layout
}

// Stream is one track of a container as seen by a demuxer or declared to a muxer.
type Stream struct {
	Idx       int       // track index in container format
	TimeBase  Rational  // time unit of every packet timestamp of this track
	FrameRate Rational  // guessed frame rate for video, zero if unknown
	Codec     CodecData // codec identity and parameters
}

func (self Stream) Type() MediaType {
	if self.Codec == nil {
		return UNKNOWN
	}
	return self.Codec.Type()
}

func (self Stream) String() string {
	name := "none"
	if self.Codec != nil {
		name = self.Codec.CodecName()
	}
	return fmt.Sprintf("#%d %s/%s tb=%s", self.Idx, self.Type(), name, self.TimeBase)
}

// Packet stores one compressed unit of a track.
type Packet struct {
	IsKeyFrame bool   // video packet is key frame
	Idx        int    // stream index in container format
	PTS        int64  // presentation time in the owning track's time unit
	DTS        int64  // decode time in the owning track's time unit
	Duration   int64  // duration in the owning track's time unit, 0 if unknown
	Data       []byte // packet data
}

func (self Packet) String() string {
	return fmt.Sprintf("pkt #%d pts=%s dts=%s dur=%d size=%d key=%v",
		self.Idx, tsString(self.PTS), tsString(self.DTS), self.Duration, len(self.Data), self.IsKeyFrame)
}

func tsString(ts int64) string {
	if ts == NoPTS {
		return "none"
	}
	return fmt.Sprint(ts)
}

// Frame is one decoded picture or block of audio samples.
//
// Handle holds the engine-native representation and is only meaningful to an
// encoder of the same engine family as the decoder that produced it. PTS is
// already in the engine time unit.
type Frame struct {
	Type   MediaType
	PTS    int64
	Handle interface{}
}

type PacketWriter interface {
	WritePacket(Packet) error
}

type PacketReader interface {
	ReadPacket() (Packet, error)
}

// Muxer describes the steps of writing compressed packets into container formats like MP4/FLV/MPEG-TS.
//
// The index of a stream in the slice passed to WriteHeader is its output index.
type Muxer interface {
	WriteHeader([]Stream) error // write the file header
	PacketWriter                // write compressed packets, interleaving as the container requires
	WriteTrailer() error        // finish writing file, this func can be called only once
}

// Muxer with Close() method
type MuxCloser interface {
	Muxer
	Close() error
}

// TimeBaseMuxer is implemented by muxers that choose the time unit of each
// output stream themselves while writing the header. Packets must be written
// in that unit. An invalid Rational keeps the unit declared in the header.
type TimeBaseMuxer interface {
	Muxer
	StreamTimeBase(idx int) Rational
}

// Demuxer can read compressed packets from container formats like MP4/FLV/MPEG-TS.
//
// ReadPacket returns io.EOF when the source is exhausted.
type Demuxer interface {
	PacketReader                // read compressed packets in the source's native interleaving
	Streams() ([]Stream, error) // reads the file header, contains track infomations
}

// Demuxer with Close() method
type DemuxCloser interface {
	Demuxer
	Close() error
}

// Outcome of pulling from a codec engine.
type Outcome uint8

const (
	// Produced means one output unit was returned; pull again.
	Produced = Outcome(iota + 1)
	// Drained means the engine needs more input before it can produce anything.
	Drained
	// Exhausted means the engine flushed everything after end of input and
	// will never produce again.
	Exhausted
)

func (self Outcome) String() string {
	switch self {
	case Produced:
		return "produced"
	case Drained:
		return "drained"
	case Exhausted:
		return "exhausted"
	default:
		return "?"
	}
}

// Decoder turns compressed packets into raw frames through a submit/pull cycle.
// cgo/ffmpeg and codec/fake implement Decoder.
type Decoder interface {
	// SubmitPacket offers one packet with timestamps in TimeBase(). A nil
	// packet signals that no more input will follow.
	SubmitPacket(*Packet) error
	// PullFrame attempts to retrieve one decoded frame. After the nil packet
	// has been submitted, repeated calls must eventually return Exhausted.
	PullFrame() (Frame, Outcome, error)
	TimeBase() Rational // fixed time unit of submitted packets and produced frames
	Close() error       // close decoder, free native contexts
}

// Encoder turns raw frames into compressed packets through a submit/pull cycle.
type Encoder interface {
	// SubmitFrame offers one frame and takes ownership of it. A nil frame
	// signals that no more input will follow.
	SubmitFrame(*Frame) error
	// PullPacket attempts to retrieve one encoded packet, timestamps in
	// TimeBase(). After the nil frame has been submitted, repeated calls must
	// eventually return Exhausted.
	PullPacket() (Packet, Outcome, error)
	TimeBase() Rational           // fixed time unit of produced packets
	CodecData() (CodecData, error) // encoder's resolved codec data, can put into container
	Close() error                 // close encoder, free native contexts
}
