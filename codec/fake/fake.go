// Package fake implements in-process codec engines that follow the
// av.Decoder and av.Encoder submit/pull protocol without touching any media
// library. A decoded frame's Handle is the packet payload.
package fake

import (
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/av/pktque"
)

var (
	ErrMalformed      = errors.New("fake: malformed input")
	ErrSubmitAfterEOF = errors.New("fake: submit after end of input")
	ErrClosed         = errors.New("fake: engine closed")
)

type CodecData struct {
	Type_          av.MediaType
	Name_          string
	Width_         int
	Height_        int
	SampleRate_    int
	SampleFormat_  av.SampleFormat
	ChannelLayout_ av.ChannelLayout
}

func (self CodecData) Type() av.MediaType {
	return self.Type_
}

func (self CodecData) CodecName() string {
	return self.Name_
}

func (self CodecData) Width() int {
	return self.Width_
}

func (self CodecData) Height() int {
	return self.Height_
}

func (self CodecData) SampleFormat() av.SampleFormat {
	return self.SampleFormat_
}

func (self CodecData) ChannelLayout() av.ChannelLayout {
	return self.ChannelLayout_
}

func (self CodecData) SampleRate() int {
	return self.SampleRate_
}

// Engine is the buffering core shared by Decoder and Encoder.
//
// Delay units are held back before the first output, the way a video decoder
// holds frames for reordering. Every buffered unit is released once the end
// of input has been submitted.
type Engine struct {
	Delay int
	// FailAt makes the FailAt-th submitted unit (1-based) fail as malformed.
	FailAt int
	// StopAfter reports Exhausted after that many outputs even without the
	// end-of-input sentinel.
	StopAfter int
	// Stall keeps answering Drained after end of input instead of Exhausted.
	Stall bool

	Submitted int // units accepted
	Produced  int // units returned with av.Produced
	// PullsAfterExhausted counts pulls made after Exhausted was reported.
	PullsAfterExhausted int

	buf       *pktque.Buf
	eof       bool
	exhausted bool
	closed    bool
}

func (self *Engine) submit(pkt *av.Packet) (err error) {
	if self.closed {
		err = ErrClosed
		return
	}
	if self.eof {
		err = ErrSubmitAfterEOF
		return
	}
	if pkt == nil {
		self.eof = true
		return
	}
	if self.FailAt > 0 && self.Submitted+1 == self.FailAt {
		err = errors.Wrapf(ErrMalformed, "unit %d", self.FailAt)
		return
	}
	if self.buf == nil {
		self.buf = pktque.NewBuf()
	}
	self.buf.Push(*pkt)
	self.Submitted++
	return
}

func (self *Engine) pull() (pkt av.Packet, outcome av.Outcome, err error) {
	if self.closed {
		err = ErrClosed
		return
	}
	if self.exhausted {
		self.PullsAfterExhausted++
		outcome = av.Exhausted
		return
	}
	if self.StopAfter > 0 && self.Produced >= self.StopAfter {
		self.exhausted = true
		outcome = av.Exhausted
		return
	}

	n := 0
	if self.buf != nil {
		n = self.buf.Len()
	}
	if n > self.Delay || (self.eof && n > 0 && !self.Stall) {
		pkt, _ = self.buf.Pop()
		self.Produced++
		outcome = av.Produced
		return
	}
	if self.eof && !self.Stall {
		self.exhausted = true
		outcome = av.Exhausted
		return
	}
	outcome = av.Drained
	return
}

// Exhausted reports whether the engine has returned av.Exhausted.
func (self *Engine) Exhausted() bool {
	return self.exhausted
}

// Buffered returns the number of units held inside the engine.
func (self *Engine) Buffered() int {
	if self.buf == nil {
		return 0
	}
	return self.buf.Len()
}

func (self *Engine) Closed() bool {
	return self.closed
}

func (self *Engine) TimeBase() av.Rational {
	return av.EngineTimeBase
}

func (self *Engine) Close() error {
	self.closed = true
	return nil
}

type Decoder struct {
	Engine
	MediaType av.MediaType // type stamped on produced frames
}

func (self *Decoder) SubmitPacket(pkt *av.Packet) error {
	return self.submit(pkt)
}

func (self *Decoder) PullFrame() (frame av.Frame, outcome av.Outcome, err error) {
	var pkt av.Packet
	if pkt, outcome, err = self.pull(); err != nil || outcome != av.Produced {
		return
	}
	frame = av.Frame{Type: self.MediaType, PTS: pkt.PTS, Handle: pkt.Data}
	return
}

type Encoder struct {
	Engine
	Codec av.CodecData
	// GOPSize marks every GOPSize-th packet as a key frame. 0 marks all.
	GOPSize int
}

func (self *Encoder) SubmitFrame(frame *av.Frame) (err error) {
	if frame == nil {
		return self.submit(nil)
	}
	data, ok := frame.Handle.([]byte)
	if !ok {
		err = errors.Wrapf(ErrMalformed, "frame handle %T", frame.Handle)
		return
	}
	return self.submit(&av.Packet{PTS: frame.PTS, DTS: frame.PTS, Data: data})
}

func (self *Encoder) PullPacket() (pkt av.Packet, outcome av.Outcome, err error) {
	if pkt, outcome, err = self.pull(); err != nil || outcome != av.Produced {
		return
	}
	pkt.IsKeyFrame = self.GOPSize <= 0 || (self.Produced-1)%self.GOPSize == 0
	return
}

func (self *Encoder) CodecData() (codec av.CodecData, err error) {
	if self.Codec == nil {
		err = errors.New("fake: encoder has no codec data")
		return
	}
	codec = self.Codec
	return
}
