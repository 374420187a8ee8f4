package av

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func TestRescale(t *testing.T) {
	tests := []struct {
		ts       int64
		src, dst Rational
		want     int64
	}{
		{0, Rational{1, 90000}, Rational{1, 1000}, 0},
		{90000, Rational{1, 90000}, Rational{1, 1000}, 1000},
		{3003, Rational{1, 90000}, EngineTimeBase, 33367},
		{1024, Rational{1, 44100}, Rational{1, 48000}, 1115},
		{1, Rational{1, 2}, Rational{1, 1}, 1},
		{-1, Rational{1, 2}, Rational{1, 1}, -1},
		{3, Rational{1, 4}, Rational{1, 1}, 1},
		{-3, Rational{1, 4}, Rational{1, 1}, -1},
		{5, Rational{1, 4}, Rational{1, 1}, 1},
		{-5, Rational{1, 4}, Rational{1, 1}, -1},
		{100, Rational{1001, 30000}, Rational{1, 90000}, 300300},
		{7, Rational{1, 1000}, Rational{1, 1000}, 7},
		{NoPTS, Rational{1, 90000}, Rational{1, 1000}, NoPTS},
	}
	for _, tt := range tests {
		if got := Rescale(tt.ts, tt.src, tt.dst); got != tt.want {
			t.Errorf("Rescale(%d, %s, %s) = %d, want %d", tt.ts, tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestRescaleNoOverflow(t *testing.T) {
	ts := int64(math.MaxInt64 / 2)
	got := Rescale(ts, Rational{1, 1000}, Rational{1, 1000000})
	if got != math.MaxInt64 {
		t.Errorf("expected saturation, got %d", got)
	}
	got = Rescale(ts, Rational{1, 1000000}, Rational{1, 1000})
	if want := (ts + 500) / 1000; got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestRescaleIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	units := []Rational{{1, 90000}, {1, 1000}, {1001, 24000}, {1, 1}, {3, 7}}
	for i := 0; i < 1000; i++ {
		ts := r.Int63() - math.MaxInt64/2
		unit := units[i%len(units)]
		if got := Rescale(ts, unit, unit); got != ts {
			t.Fatalf("Rescale(%d, %s, %s) = %d", ts, unit, unit, got)
		}
	}
}

func TestRescaleRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	pairs := [][2]Rational{
		{{1, 90000}, EngineTimeBase},
		{{1, 44100}, EngineTimeBase},
		{{1, 1000}, {1, 90000}},
		{{1001, 30000}, {1, 90000}},
		{{1, 48000}, {1, 48000}},
	}
	for i := 0; i < 5000; i++ {
		p := pairs[i%len(pairs)]
		ts := r.Int63n(1<<40) - 1<<39
		back := Rescale(Rescale(ts, p[0], p[1]), p[1], p[0])
		if d := back - ts; d > 1 || d < -1 {
			t.Fatalf("%d -> %s -> %s -> %d", ts, p[0], p[1], back)
		}
	}
}

func TestPacketRescale(t *testing.T) {
	pkt := Packet{PTS: 9000, DTS: NoPTS, Duration: 3000}
	pkt.Rescale(Rational{1, 90000}, Rational{1, 1000})
	if pkt.PTS != 100 || pkt.DTS != NoPTS || pkt.Duration != 33 {
		t.Errorf("unexpected %s", pkt)
	}
}

func ExampleRescale() {
	fmt.Println(Rescale(3600, Rational{1, 90000}, EngineTimeBase))
	fmt.Println(Rescale(40000, EngineTimeBase, Rational{1, 1000}))
	fmt.Println(Rescale(15, Rational{1, 10}, Rational{1, 1}))
	// Output:
	// 40000
	// 40
	// 2
}
