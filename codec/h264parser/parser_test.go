package h264parser

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"
)

func TestSplitNALUs(t *testing.T) {
	annexbFrame, _ := hex.DecodeString("00000001223322330000000122332233223300000133000001000001")
	nalus, typ := SplitNALUs(annexbFrame)
	if typ != NALU_ANNEXB || len(nalus) != 3 {
		t.Fatalf("annexb: typ=%d nalus=%x", typ, nalus)
	}

	avccFrame, _ := hex.DecodeString("00000008aabbccaabbccaabb00000001aa")
	nalus, typ = SplitNALUs(avccFrame)
	if typ != NALU_AVCC || len(nalus) != 2 || !bytes.Equal(nalus[1], []byte{0xaa}) {
		t.Fatalf("avcc: typ=%d nalus=%x", typ, nalus)
	}
}

func TestDecoderConfRecordRoundTrip(t *testing.T) {
	record := AVCDecoderConfRecord{
		AVCProfileIndication: 0x64,
		AVCLevelIndication:   0x1f,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{{0x67, 0x64, 0x00, 0x1f}},
		PPS:                  [][]byte{{0x68, 0xee, 0x3c, 0x80}},
	}
	b := make([]byte, record.Len())
	if n := record.Marshal(b); n != len(b) {
		t.Fatalf("marshal wrote %d of %d", n, len(b))
	}
	var got AVCDecoderConfRecord
	if _, err := got.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if got.LengthSizeMinusOne != 3 || !bytes.Equal(got.SPS[0], record.SPS[0]) || !bytes.Equal(got.PPS[0], record.PPS[0]) {
		t.Fatalf("got %+v", got)
	}
	if _, err := got.Unmarshal(b[:8]); err != ErrDecconfInvalid {
		t.Fatalf("truncated record: %v", err)
	}
}

func ExampleAnnexBConverter() {
	record := AVCDecoderConfRecord{LengthSizeMinusOne: 1, SPS: [][]byte{{0x67, 1}}, PPS: [][]byte{{0x68, 2}}}
	extradata := make([]byte, record.Len())
	record.Marshal(extradata)

	conv, _ := NewAnnexBConverter(extradata)
	key, _ := conv.Convert([]byte{0, 2, 0x65, 0xaa}, true)
	delta, _ := conv.Convert([]byte{0, 1, 0x41}, false)
	fmt.Printf("%x\n%x\n", key, delta)
	// Output:
	// 0000000167010000000168020000000165aa
	// 0000000141
}
