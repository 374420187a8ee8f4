package rtp

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"

	"github.com/tyrese/avtranscode/codec/h264parser"
)

// SDP describes the streams sent by the muxer, for receivers such as
// ffplay or VLC. It is available after WriteHeader.
func (self *Muxer) SDP() (b []byte, err error) {
	if len(self.tracks) == 0 {
		err = errors.New("rtp: SDP before WriteHeader")
		return
	}

	addrtype := "IP4"
	if ip := net.ParseIP(self.Host); ip != nil && ip.To4() == nil {
		addrtype = "IP6"
	}
	id := uint64(self.tracks[0].ssrc)

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      id,
			SessionVersion: id,
			NetworkType:    "IN",
			AddressType:    addrtype,
			UnicastAddress: self.Host,
		},
		SessionName: "avtranscode",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addrtype,
			Address:     &sdp.Address{Address: self.Host},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{}}},
	}

	for _, t := range self.tracks {
		media := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:  t.payload.media,
				Port:   sdp.RangedPort{Value: t.port},
				Protos: []string{"RTP", "AVP"},
			},
		}
		media.WithCodec(t.payload.pt, t.payload.encoding, t.payload.clock, t.payload.channels, t.payload.fmtp)
		media.WithValueAttribute("ssrc", fmt.Sprintf("%d cname:avtranscode", t.ssrc))
		desc.MediaDescriptions = append(desc.MediaDescriptions, media)
	}

	if b, err = desc.Marshal(); err != nil {
		err = errors.Wrap(err, "rtp: marshal SDP")
	}
	return
}

// h264Fmtp adds the profile and parameter sets of an avcC record to the
// H.264 format parameters.
func h264Fmtp(extradata []byte) string {
	fmtp := "packetization-mode=1"
	if !h264parser.IsAVCDecoderConfRecord(extradata) {
		return fmtp
	}
	var record h264parser.AVCDecoderConfRecord
	if _, err := record.Unmarshal(extradata); err != nil || len(record.SPS) == 0 {
		return fmtp
	}
	sps := record.SPS[0]
	if len(sps) >= 4 {
		fmtp += fmt.Sprintf(";profile-level-id=%02x%02x%02x", sps[1], sps[2], sps[3])
	}
	var sets []string
	for _, set := range append(append([][]byte{}, record.SPS...), record.PPS...) {
		sets = append(sets, base64.StdEncoding.EncodeToString(set))
	}
	return fmtp + ";sprop-parameter-sets=" + strings.Join(sets, ",")
}
