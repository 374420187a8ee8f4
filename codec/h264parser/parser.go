// Package h264parser converts H.264 access units between the AVCC layout of
// MP4-style containers and the Annex B layout RTP payloaders expect.
package h264parser

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	NALU_IDR = 5
	NALU_SEI = 6
	NALU_SPS = 7
	NALU_PPS = 8
	NALU_AUD = 9
)

func NALUType(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	return int(b[0] & 0x1f)
}

func IsDataNALU(b []byte) bool {
	typ := NALUType(b)
	return typ >= 1 && typ <= 5
}

var StartCodeBytes = []byte{0, 0, 0, 1}

const (
	NALU_RAW = iota
	NALU_AVCC
	NALU_ANNEXB
)

// SplitNALUs guesses the layout of b, assuming 4-byte AVCC lengths.
func SplitNALUs(b []byte) (nalus [][]byte, typ int) {
	if len(b) < 4 {
		return [][]byte{b}, NALU_RAW
	}

	val3 := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	val4 := binary.BigEndian.Uint32(b)

	// maybe AVCC
	if val4 <= uint32(len(b)) {
		if nalus, err := SplitAVCC(b, 4); err == nil {
			return nalus, NALU_AVCC
		}
	}

	if val3 == 1 || val4 == 1 {
		return splitAnnexB(b), NALU_ANNEXB
	}

	return [][]byte{b}, NALU_RAW
}

func splitAnnexB(b []byte) (nalus [][]byte) {
	start := -1
	for i := 0; i+2 < len(b); {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			if start >= 0 {
				end := i
				// 4-byte start code
				if end > start && b[end-1] == 0 {
					end--
				}
				if end > start {
					nalus = append(nalus, b[start:end])
				}
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(b) {
		nalus = append(nalus, b[start:])
	}
	return
}

var ErrAVCCInvalid = errors.New("h264parser: AVCC access unit invalid")

// SplitAVCC splits an access unit whose NAL units carry lengthSize-byte
// big-endian length prefixes.
func SplitAVCC(b []byte, lengthSize int) (nalus [][]byte, err error) {
	if lengthSize < 1 || lengthSize > 4 {
		err = errors.Errorf("h264parser: NAL length size %d", lengthSize)
		return
	}
	for len(b) > 0 {
		if len(b) < lengthSize {
			err = ErrAVCCInvalid
			return
		}
		var n uint32
		for _, c := range b[:lengthSize] {
			n = n<<8 | uint32(c)
		}
		b = b[lengthSize:]
		if uint32(len(b)) < n {
			err = ErrAVCCInvalid
			return
		}
		nalus = append(nalus, b[:n])
		b = b[n:]
	}
	return
}

// JoinAnnexB writes nalus with 4-byte start codes.
func JoinAnnexB(nalus ...[]byte) (b []byte) {
	for _, nalu := range nalus {
		b = append(b, StartCodeBytes...)
		b = append(b, nalu...)
	}
	return
}

type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8
	ProfileCompatibility uint8
	AVCLevelIndication   uint8
	LengthSizeMinusOne   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

var ErrDecconfInvalid = errors.New("h264parser: AVCDecoderConfRecord invalid")

// IsAVCDecoderConfRecord reports whether extradata is an avcC box body rather
// than Annex B parameter sets.
func IsAVCDecoderConfRecord(b []byte) bool {
	return len(b) >= 7 && b[0] == 1
}

func (self *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 7 {
		err = ErrDecconfInvalid
		return
	}

	self.AVCProfileIndication = b[1]
	self.ProfileCompatibility = b[2]
	self.AVCLevelIndication = b[3]
	self.LengthSizeMinusOne = b[4] & 0x03
	spscount := int(b[5] & 0x1f)
	n += 6

	readSets := func(count int) (sets [][]byte, err error) {
		for i := 0; i < count; i++ {
			if len(b) < n+2 {
				err = ErrDecconfInvalid
				return
			}
			l := int(binary.BigEndian.Uint16(b[n:]))
			n += 2
			if len(b) < n+l {
				err = ErrDecconfInvalid
				return
			}
			sets = append(sets, b[n:n+l])
			n += l
		}
		return
	}

	if self.SPS, err = readSets(spscount); err != nil {
		return
	}
	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++
	if self.PPS, err = readSets(ppscount); err != nil {
		return
	}
	return
}

func (self AVCDecoderConfRecord) Len() (n int) {
	n = 7
	for _, sps := range self.SPS {
		n += 2 + len(sps)
	}
	for _, pps := range self.PPS {
		n += 2 + len(pps)
	}
	return
}

func (self AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = self.AVCProfileIndication
	b[2] = self.ProfileCompatibility
	b[3] = self.AVCLevelIndication
	b[4] = self.LengthSizeMinusOne | 0xfc
	b[5] = uint8(len(self.SPS)) | 0xe0
	n += 6

	for _, sps := range self.SPS {
		binary.BigEndian.PutUint16(b[n:], uint16(len(sps)))
		n += 2
		copy(b[n:], sps)
		n += len(sps)
	}

	b[n] = uint8(len(self.PPS))
	n++

	for _, pps := range self.PPS {
		binary.BigEndian.PutUint16(b[n:], uint16(len(pps)))
		n += 2
		copy(b[n:], pps)
		n += len(pps)
	}

	return
}

// AnnexBConverter rewrites AVCC access units as Annex B and repeats the
// parameter sets in front of every key frame, so a receiver can join at any
// key frame.
type AnnexBConverter struct {
	lengthSize int
	paramsets  [][]byte
}

// NewAnnexBConverter takes codec extradata. Annex B extradata needs no
// conversion and returns nil.
func NewAnnexBConverter(extradata []byte) (conv *AnnexBConverter, err error) {
	if !IsAVCDecoderConfRecord(extradata) {
		return
	}
	var record AVCDecoderConfRecord
	if _, err = record.Unmarshal(extradata); err != nil {
		return
	}
	conv = &AnnexBConverter{
		lengthSize: int(record.LengthSizeMinusOne) + 1,
		paramsets:  append(append([][]byte{}, record.SPS...), record.PPS...),
	}
	return
}

func (self *AnnexBConverter) Convert(data []byte, keyframe bool) (out []byte, err error) {
	var nalus [][]byte
	if nalus, err = SplitAVCC(data, self.lengthSize); err != nil {
		return
	}
	if keyframe {
		out = JoinAnnexB(self.paramsets...)
	}
	out = append(out, JoinAnnexB(nalus...)...)
	return
}
