package transcode

import (
	"fmt"
	"io"
	"io/ioutil"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tyrese/avtranscode/av"
	"github.com/tyrese/avtranscode/codec/fake"
)

var (
	h264 = fake.CodecData{Type_: av.VIDEO, Name_: "h264", Width_: 640, Height_: 360}
	hevc = fake.CodecData{Type_: av.VIDEO, Name_: "hevc", Width_: 640, Height_: 360}
	aac  = fake.CodecData{Type_: av.AUDIO, Name_: "aac", SampleRate_: 48000, SampleFormat_: av.FLTP, ChannelLayout_: av.CH_STEREO}
	scte = fake.CodecData{Type_: av.DATA, Name_: "scte_35"}
)

type memDemuxer struct {
	streams []av.Stream
	pkts    []av.Packet
	reads   int
	closed  bool
}

func (self *memDemuxer) Streams() ([]av.Stream, error) {
	return self.streams, nil
}

func (self *memDemuxer) ReadPacket() (pkt av.Packet, err error) {
	if self.reads == len(self.pkts) {
		err = io.EOF
		return
	}
	pkt = self.pkts[self.reads]
	self.reads++
	return
}

func (self *memDemuxer) Close() error {
	self.closed = true
	return nil
}

type memMuxer struct {
	streams  []av.Stream
	pkts     []av.Packet
	trailer  bool
	failAt   int
	timebase av.Rational
}

func (self *memMuxer) WriteHeader(streams []av.Stream) error {
	self.streams = streams
	return nil
}

func (self *memMuxer) WritePacket(pkt av.Packet) error {
	if self.failAt > 0 && len(self.pkts)+1 == self.failAt {
		return errors.New("disk full")
	}
	self.pkts = append(self.pkts, pkt)
	return nil
}

func (self *memMuxer) WriteTrailer() error {
	self.trailer = true
	return nil
}

// tbMuxer picks its own time unit for every output stream.
type tbMuxer struct {
	memMuxer
}

func (self *tbMuxer) StreamTimeBase(idx int) av.Rational {
	return self.timebase
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func videoPackets(idx, n int) (pkts []av.Packet) {
	for i := 0; i < n; i++ {
		pkts = append(pkts, av.Packet{
			Idx:        idx,
			PTS:        int64(i * 3003),
			DTS:        int64(i * 3003),
			Duration:   3003,
			IsKeyFrame: i%30 == 0,
			Data:       []byte{byte(i)},
		})
	}
	return
}

type engines struct {
	decs map[int]*fake.Decoder
	encs map[int]*fake.Encoder
	seen []int
}

// transcodeVideo opens fake engines configured by setup for every video stream.
func (self *engines) transcodeVideo(setup func(dec *fake.Decoder, enc *fake.Encoder)) Options {
	self.decs = map[int]*fake.Decoder{}
	self.encs = map[int]*fake.Encoder{}
	return Options{
		Logger: quiet(),
		FindDecoderEncoder: func(stream av.Stream, i int) (need bool, dec av.Decoder, enc av.Encoder, err error) {
			self.seen = append(self.seen, stream.Idx)
			if stream.Type() != av.VIDEO {
				return
			}
			d := &fake.Decoder{MediaType: av.VIDEO}
			e := &fake.Encoder{Codec: hevc, GOPSize: 10}
			if setup != nil {
				setup(d, e)
			}
			self.decs[stream.Idx], self.encs[stream.Idx] = d, e
			return true, d, e, nil
		},
	}
}

func TestPassthroughTwoTracks(t *testing.T) {
	src := &memDemuxer{streams: []av.Stream{
		{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264},
		{Idx: 1, TimeBase: av.Rational{Num: 1, Den: 48000}, Codec: aac},
	}}
	v := 0
	for a := 0; a < 200; a++ {
		src.pkts = append(src.pkts, av.Packet{Idx: 1, PTS: int64(a * 1024), DTS: int64(a * 1024), Duration: 1024})
		if a%2 == 1 {
			src.pkts = append(src.pkts, av.Packet{Idx: 0, PTS: int64(v * 3003), DTS: int64(v * 3003), Duration: 3003})
			v++
		}
	}
	dst := &tbMuxer{}
	dst.timebase = av.Rational{Num: 1, Den: 1000}

	pipe, err := NewPipeline(src, dst, Options{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	if err = pipe.Run(); err != nil {
		t.Fatal(err)
	}

	if len(dst.pkts) != len(src.pkts) || !dst.trailer {
		t.Fatalf("wrote %d of %d, trailer=%v", len(dst.pkts), len(src.pkts), dst.trailer)
	}
	count := map[int]int{}
	for i, out := range dst.pkts {
		in := src.pkts[i]
		if out.Idx != in.Idx {
			t.Fatalf("packet %d: interleaving changed", i)
		}
		tb := src.streams[in.Idx].TimeBase
		if out.PTS != av.Rescale(in.PTS, tb, dst.timebase) || out.DTS != av.Rescale(in.DTS, tb, dst.timebase) {
			t.Fatalf("packet %d: %s from %s", i, out, in)
		}
		count[out.Idx]++
	}
	if count[0] != 100 || count[1] != 200 {
		t.Fatalf("counts %v", count)
	}
	for _, track := range pipe.Tracks() {
		if track.State() != Passthrough {
			t.Errorf("track %d is %s", track.Idx, track.State())
		}
	}
}

func TestTranscodeDelayedDecoder(t *testing.T) {
	src := &memDemuxer{
		streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}},
		pkts:    videoPackets(0, 25),
	}
	dst := &memMuxer{}
	var e engines
	options := e.transcodeVideo(func(dec *fake.Decoder, enc *fake.Encoder) {
		dec.Delay = 3
		enc.Delay = 2
	})

	pipe, err := NewPipeline(src, dst, options)
	if err != nil {
		t.Fatal(err)
	}
	if dst.streams[0].Codec.CodecName() != "hevc" || dst.streams[0].TimeBase != av.EngineTimeBase {
		t.Fatalf("header %v", dst.streams)
	}
	if err = pipe.Run(); err != nil {
		t.Fatal(err)
	}

	dec, enc := e.decs[0], e.encs[0]
	if len(dst.pkts) != enc.Produced || len(dst.pkts) != 25 {
		t.Fatalf("wrote %d, encoder produced %d", len(dst.pkts), enc.Produced)
	}
	track := pipe.Track(0)
	if track.FramesDecoded != dec.Produced || track.FramesEncoded != enc.Submitted || track.FramesDecoded != track.FramesEncoded {
		t.Fatalf("decoded %d, encoded %d", track.FramesDecoded, track.FramesEncoded)
	}
	if track.State() != Finished || !dec.Exhausted() || !enc.Exhausted() {
		t.Fatalf("state %s", track.State())
	}
	if dec.PullsAfterExhausted != 0 || enc.PullsAfterExhausted != 0 {
		t.Fatal("engine pulled after exhaustion")
	}
	for i, pkt := range dst.pkts {
		want := av.Rescale(src.pkts[i].PTS, av.Rational{Num: 1, Den: 90000}, av.EngineTimeBase)
		if pkt.PTS != want || pkt.Idx != 0 {
			t.Fatalf("packet %d: %s want pts %d", i, pkt, want)
		}
	}
}

func TestDroppedTrackType(t *testing.T) {
	src := &memDemuxer{streams: []av.Stream{
		{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264},
		{Idx: 1, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: scte},
		{Idx: 2, TimeBase: av.Rational{Num: 1, Den: 48000}, Codec: aac},
	}}
	for i := 0; i < 10; i++ {
		src.pkts = append(src.pkts,
			av.Packet{Idx: 0, PTS: int64(i * 3000)},
			av.Packet{Idx: 1, PTS: int64(i * 3000)},
			av.Packet{Idx: 2, PTS: int64(i * 1024)})
	}
	dst := &memMuxer{}
	var e engines
	pipe, err := NewPipeline(src, dst, e.transcodeVideo(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err = pipe.Run(); err != nil {
		t.Fatal(err)
	}

	if pipe.Track(1) != nil || len(pipe.Tracks()) != 2 {
		t.Fatal("data track must be dropped")
	}
	if fmt.Sprint(e.seen) != "[0 2]" {
		t.Fatalf("engines asked for %v", e.seen)
	}
	if len(dst.streams) != 2 || pipe.Track(2).Out != 1 {
		t.Fatalf("output streams %v", dst.streams)
	}
	count := map[int]int{}
	for _, pkt := range dst.pkts {
		count[pkt.Idx]++
	}
	if count[0] != 10 || count[1] != 10 || len(count) != 2 {
		t.Fatalf("counts %v", count)
	}
}

func TestSubmitFailureStopsRun(t *testing.T) {
	src := &memDemuxer{
		streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}},
		pkts:    videoPackets(0, 1000),
	}
	dst := &memMuxer{}
	var e engines
	pipe, err := NewPipeline(src, dst, e.transcodeVideo(func(dec *fake.Decoder, enc *fake.Encoder) {
		dec.FailAt = 57
	}))
	if err != nil {
		t.Fatal(err)
	}
	err = pipe.Run()

	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindProtocol || terr.Track != 0 || terr.Phase != PhaseDecode {
		t.Fatalf("got %v", err)
	}
	if errors.Cause(terr.Err) != fake.ErrMalformed {
		t.Fatalf("cause %v", terr.Err)
	}
	if len(dst.pkts) != 56 || src.reads != 57 || dst.trailer {
		t.Fatalf("wrote %d, read %d, trailer %v", len(dst.pkts), src.reads, dst.trailer)
	}

	pipe.Close()
	if !e.decs[0].Closed() || !e.encs[0].Closed() || !src.closed {
		t.Fatal("close must release engines and source")
	}
}

func TestFlushStall(t *testing.T) {
	src := &memDemuxer{
		streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}},
		pkts:    videoPackets(0, 5),
	}
	var e engines
	pipe, err := NewPipeline(src, &memMuxer{}, e.transcodeVideo(func(dec *fake.Decoder, enc *fake.Encoder) {
		enc.Stall = true
	}))
	if err != nil {
		t.Fatal(err)
	}
	err = pipe.Run()
	if !IsKind(err, KindProtocol) || errors.Cause(err) != ErrStalled {
		t.Fatalf("got %v", err)
	}
	if pipe.Track(0).State() != Draining {
		t.Fatalf("state %s", pipe.Track(0).State())
	}
}

func TestEncoderExhaustedEarly(t *testing.T) {
	src := &memDemuxer{
		streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}},
		pkts:    videoPackets(0, 6),
	}
	dst := &memMuxer{}
	var e engines
	var changes []string
	options := e.transcodeVideo(func(dec *fake.Decoder, enc *fake.Encoder) {
		enc.StopAfter = 3
	})
	options.Observer = &recorder{changes: &changes}
	pipe, err := NewPipeline(src, dst, options)
	if err != nil {
		t.Fatal(err)
	}
	if err = pipe.Run(); err != nil {
		t.Fatal(err)
	}
	track := pipe.Track(0)
	if len(dst.pkts) != 3 || track.FramesDiscarded != 3 || track.State() != Finished {
		t.Fatalf("wrote %d, discarded %d, state %s", len(dst.pkts), track.FramesDiscarded, track.State())
	}
	if fmt.Sprint(changes) != "[active->finished]" {
		t.Fatalf("changes %v", changes)
	}
}

type recorder struct {
	nopObserver
	changes *[]string
}

func (self *recorder) StateChanged(t *Track, from, to State) {
	*self.changes = append(*self.changes, fmt.Sprintf("%s->%s", from, to))
}

func TestSinkFailure(t *testing.T) {
	src := &memDemuxer{
		streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}},
		pkts:    videoPackets(0, 10),
	}
	pipe, err := NewPipeline(src, &memMuxer{failAt: 4}, Options{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	err = pipe.Run()
	if !IsKind(err, KindSink) || src.reads != 4 {
		t.Fatalf("got %v after %d reads", err, src.reads)
	}
	if err = pipe.Run(); err != ErrAlreadyRun {
		t.Fatalf("second run: %v", err)
	}
}

func TestHalfTranscodedSetup(t *testing.T) {
	src := &memDemuxer{streams: []av.Stream{{Idx: 0, TimeBase: av.Rational{Num: 1, Den: 90000}, Codec: h264}}}
	dec := &fake.Decoder{}
	_, err := NewPipeline(src, &memMuxer{}, Options{
		Logger: quiet(),
		FindDecoderEncoder: func(stream av.Stream, i int) (bool, av.Decoder, av.Encoder, error) {
			return true, dec, nil, nil
		},
	})
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindSetup || terr.Err != ErrHalfTranscoded {
		t.Fatalf("got %v", err)
	}
	if !dec.Closed() || !src.closed {
		t.Fatal("setup failure must release what was opened")
	}
}

func ExampleError() {
	err := &Error{Kind: KindProtocol, Track: 3, Phase: PhaseFlush, Err: ErrStalled}
	fmt.Println(err)
	fmt.Println(&Error{Kind: KindSink, Track: NoTrack, Phase: PhaseTrailer, Err: io.ErrShortWrite})
	// Output:
	// transcode: protocol failure on track #3 during flush: engine drained after end of input
	// transcode: sink failure during trailer: short write
}
