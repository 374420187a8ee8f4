package transcode

import (
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
)

// State of a Track in the transcode state machine.
type State uint8

const (
	Passthrough = State(iota + 1)
	Active      // both engines live
	Draining    // decoder exhausted, encoder live
	Finished    // both engines exhausted
)

func (self State) String() string {
	switch self {
	case Passthrough:
		return "passthrough"
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	default:
		return "?"
	}
}

// Track is the context of one retained source track.
type Track struct {
	Idx    int       // source index
	Out    int       // output index, dense in source order
	Stream av.Stream // source stream
	// OutTimeBase is the sink's time unit for this track, known after the
	// header is written.
	OutTimeBase av.Rational

	dec          av.Decoder
	enc          av.Encoder
	decExhausted bool
	encExhausted bool

	PacketsIn       int // units read from the source
	FramesDecoded   int // frames pulled from the decoder
	FramesEncoded   int // frames submitted to the encoder
	FramesDiscarded int // frames decoded after the encoder was exhausted
	PacketsOut      int // units written to the sink

	pipe *Pipeline
	log  logrus.FieldLogger
}

func (self *Track) State() State {
	switch {
	case self.dec == nil:
		return Passthrough
	case self.decExhausted && self.encExhausted:
		return Finished
	case self.decExhausted:
		return Draining
	default:
		return Active
	}
}

// Transcoded reports whether the track has a decoder/encoder pair.
func (self *Track) Transcoded() bool {
	return self.dec != nil
}

func (self *Track) Decoder() av.Decoder {
	return self.dec
}

func (self *Track) Encoder() av.Encoder {
	return self.enc
}

func (self *Track) fail(kind Kind, phase string, err error) error {
	return newError(kind, self.Idx, phase, err)
}

func (self *Track) setExhausted(dec bool) {
	from := self.State()
	if dec {
		self.decExhausted = true
	} else {
		self.encExhausted = true
	}
	to := self.State()
	if from != to {
		self.log.WithField("phase", "state").Debugf("transcode: %s -> %s", from, to)
		self.pipe.observer.StateChanged(self, from, to)
	}
}

// passthrough relabels pkt and forwards it with timestamps in the sink unit.
func (self *Track) passthrough(pkt av.Packet) (err error) {
	pkt.Rescale(self.Stream.TimeBase, self.OutTimeBase)
	return self.write(pkt)
}

func (self *Track) write(pkt av.Packet) (err error) {
	pkt.Idx = self.Out
	if Debug {
		self.log.WithField("phase", PhaseWrite).Debugf("transcode: %s", pkt)
	}
	if err = self.pipe.dst.WritePacket(pkt); err != nil {
		return self.fail(KindSink, PhaseWrite, err)
	}
	self.PacketsOut++
	self.pipe.observer.PacketWritten(self)
	return
}

// transcode runs the normal transition for one source unit.
func (self *Track) transcode(pkt av.Packet) (err error) {
	if self.decExhausted {
		// the decoder is terminal, nothing can consume the unit any more
		self.log.WithField("phase", PhaseDecode).Warnf("transcode: unit dropped, track is %s", self.State())
		return
	}
	pkt.Rescale(self.Stream.TimeBase, self.dec.TimeBase())
	if err = self.dec.SubmitPacket(&pkt); err != nil {
		return self.fail(KindProtocol, PhaseDecode, err)
	}
	return self.drainDecoder(false)
}

// flush runs the flush transition once the source is exhausted.
func (self *Track) flush() (err error) {
	if !self.decExhausted {
		if err = self.dec.SubmitPacket(nil); err != nil {
			return self.fail(KindProtocol, PhaseFlush, err)
		}
		if err = self.drainDecoder(true); err != nil {
			return
		}
	}
	if !self.encExhausted {
		if err = self.enc.SubmitFrame(nil); err != nil {
			return self.fail(KindProtocol, PhaseFlush, err)
		}
		if err = self.drainEncoder(true); err != nil {
			return
		}
	}
	return
}

// drainDecoder pulls frames until the decoder wants more input or is
// exhausted, pushing every frame through the encoder. After end of input only
// Produced and Exhausted are legal.
func (self *Track) drainDecoder(flushing bool) (err error) {
	phase := PhaseDecode
	if flushing {
		phase = PhaseFlush
	}
	for {
		var frame av.Frame
		var outcome av.Outcome
		if frame, outcome, err = self.dec.PullFrame(); err != nil {
			return self.fail(KindProtocol, phase, err)
		}
		switch outcome {
		case av.Produced:
			self.FramesDecoded++
			if err = self.encode(&frame); err != nil {
				return
			}
		case av.Drained:
			if flushing {
				return self.fail(KindProtocol, phase, ErrStalled)
			}
			return
		case av.Exhausted:
			self.setExhausted(true)
			return
		default:
			return self.fail(KindProtocol, phase, ErrBadOutcome)
		}
	}
}

func (self *Track) encode(frame *av.Frame) (err error) {
	if self.encExhausted {
		self.FramesDiscarded++
		self.log.WithField("phase", PhaseEncode).Warn("transcode: frame discarded, encoder exhausted")
		self.pipe.observer.FrameDiscarded(self)
		return
	}
	if err = self.enc.SubmitFrame(frame); err != nil {
		return self.fail(KindProtocol, PhaseEncode, err)
	}
	self.FramesEncoded++
	self.pipe.observer.FrameTranscoded(self)
	return self.drainEncoder(false)
}

func (self *Track) drainEncoder(flushing bool) (err error) {
	phase := PhaseEncode
	if flushing {
		phase = PhaseFlush
	}
	for {
		var pkt av.Packet
		var outcome av.Outcome
		if pkt, outcome, err = self.enc.PullPacket(); err != nil {
			return self.fail(KindProtocol, phase, err)
		}
		switch outcome {
		case av.Produced:
			pkt.Rescale(self.enc.TimeBase(), self.OutTimeBase)
			if err = self.write(pkt); err != nil {
				return
			}
		case av.Drained:
			if flushing {
				return self.fail(KindProtocol, phase, ErrStalled)
			}
			return
		case av.Exhausted:
			self.setExhausted(false)
			return
		default:
			return self.fail(KindProtocol, phase, ErrBadOutcome)
		}
	}
}
