package av

import (
	"fmt"
	"testing"
)

func TestMediaTypeRoles(t *testing.T) {
	for _, typ := range []MediaType{VIDEO, AUDIO, SUBTITLE} {
		if !typ.Retained() {
			t.Errorf("%s should be retained", typ)
		}
	}
	for _, typ := range []MediaType{UNKNOWN, DATA, ATTACHMENT} {
		if typ.Retained() {
			t.Errorf("%s should be dropped", typ)
		}
	}
	if SUBTITLE.Transcodable() || !VIDEO.Transcodable() || !AUDIO.Transcodable() {
		t.Error("only audio and video are transcodable")
	}
}

func ExampleChannelLayout() {
	fmt.Println(CH_MONO, CH_STEREO, CH_3POINT1)
	fmt.Println(FLTP, FLTP.IsPlanar(), FLTP.BytesPerSample())
	// Output:
	// 1ch 2ch 4ch
	// fltp true 4
}

func ExampleStream() {
	var s Stream
	s.Idx = 2
	s.TimeBase = Rational{1, 90000}
	fmt.Println(s)
	// Output:
	// #2 unknown/none tb=1/90000
}
