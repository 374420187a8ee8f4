package pktque

import (
	"time"

	"github.com/tyrese/avtranscode/av"
)

type Filter interface {
	// ModifyPacket may rewrite pkt in place or ask for it to be dropped.
	ModifyPacket(pkt *av.Packet, streams []av.Stream) (drop bool, err error)
}

type Filters []Filter

func (self Filters) ModifyPacket(pkt *av.Packet, streams []av.Stream) (drop bool, err error) {
	for _, filter := range self {
		if drop, err = filter.ModifyPacket(pkt, streams); err != nil {
			return
		}
		if drop {
			return
		}
	}
	return
}

// FilterDemuxer wraps a Demuxer and runs every packet through Filter.
type FilterDemuxer struct {
	av.Demuxer
	Filter  Filter
	streams []av.Stream
}

func (self *FilterDemuxer) Streams() (streams []av.Stream, err error) {
	if self.streams == nil {
		if self.streams, err = self.Demuxer.Streams(); err != nil {
			return
		}
	}
	streams = self.streams
	return
}

func (self *FilterDemuxer) ReadPacket() (pkt av.Packet, err error) {
	if _, err = self.Streams(); err != nil {
		return
	}

	for {
		if pkt, err = self.Demuxer.ReadPacket(); err != nil {
			return
		}
		var drop bool
		if drop, err = self.Filter.ModifyPacket(&pkt, self.streams); err != nil {
			return
		}
		if !drop {
			break
		}
	}

	return
}

func findStream(streams []av.Stream, idx int) (stream av.Stream, ok bool) {
	for _, s := range streams {
		if s.Idx == idx {
			return s, true
		}
	}
	return
}

// WaitKeyFrame drops every packet until the first video key frame.
// Sources without video pass through untouched.
type WaitKeyFrame struct {
	ok bool
}

func (self *WaitKeyFrame) ModifyPacket(pkt *av.Packet, streams []av.Stream) (drop bool, err error) {
	if self.ok {
		return
	}
	hasvideo := false
	for _, s := range streams {
		if s.Type() == av.VIDEO {
			hasvideo = true
		}
	}
	if !hasvideo {
		self.ok = true
		return
	}
	if stream, found := findStream(streams, pkt.Idx); found && stream.Type() == av.VIDEO && pkt.IsKeyFrame {
		self.ok = true
	}
	drop = !self.ok
	return
}

// FixTime rebases timestamps so the first packet of the source starts at zero.
// The offset is shared by all tracks so their relative timing is kept.
type FixTime struct {
	StartFromZero bool
	zerobase      int64 // in av.EngineTimeBase
	based         bool
}

func (self *FixTime) ModifyPacket(pkt *av.Packet, streams []av.Stream) (drop bool, err error) {
	if !self.StartFromZero {
		return
	}
	stream, found := findStream(streams, pkt.Idx)
	if !found || !stream.TimeBase.Valid() {
		return
	}
	if !self.based {
		ts := pkt.DTS
		if ts == av.NoPTS {
			ts = pkt.PTS
		}
		if ts == av.NoPTS {
			return
		}
		self.zerobase = av.Rescale(ts, stream.TimeBase, av.EngineTimeBase)
		self.based = true
	}
	offset := av.Rescale(self.zerobase, av.EngineTimeBase, stream.TimeBase)
	if pkt.PTS != av.NoPTS {
		pkt.PTS -= offset
	}
	if pkt.DTS != av.NoPTS {
		pkt.DTS -= offset
	}
	return
}

// Walltime delays packets so they are read no faster than real time,
// measured on the first track's timestamps.
type Walltime struct {
	Now   func() time.Time
	Sleep func(time.Duration)

	firsttime time.Time
	firstts   int64
}

func (self *Walltime) ModifyPacket(pkt *av.Packet, streams []av.Stream) (drop bool, err error) {
	if len(streams) == 0 || pkt.Idx != streams[0].Idx || pkt.DTS == av.NoPTS {
		return
	}
	now, sleep := self.Now, self.Sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	us := av.Rescale(pkt.DTS, streams[0].TimeBase, av.EngineTimeBase)
	if self.firsttime.IsZero() {
		self.firsttime = now()
		self.firstts = us
	}
	pkttime := self.firsttime.Add(time.Duration(us-self.firstts) * time.Microsecond)
	if delta := pkttime.Sub(now()); delta > 0 {
		sleep(delta)
	}
	return
}
