package transcode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a fatal pipeline failure.
type Kind uint8

const (
	KindSetup    = Kind(iota + 1) // engine could not be opened or parameters copied
	KindProtocol                  // submit or pull failed or answered outside the protocol
	KindSink                      // header, packet or trailer write failed
	KindSource                    // reading the source failed
)

func (self Kind) String() string {
	switch self {
	case KindSetup:
		return "setup"
	case KindProtocol:
		return "protocol"
	case KindSink:
		return "sink"
	case KindSource:
		return "source"
	default:
		return "unknown"
	}
}

// NoTrack is the Error.Track value of failures not tied to one track.
const NoTrack = -1

// Phases reported in Error.Phase.
const (
	PhaseStreams = "streams"
	PhaseOpen    = "open engines"
	PhaseHeader  = "header"
	PhaseRead    = "read"
	PhaseDecode  = "decode"
	PhaseEncode  = "encode"
	PhaseWrite   = "write"
	PhaseFlush   = "flush"
	PhaseTrailer = "trailer"
)

var (
	// ErrStalled is returned when an engine answers Drained after it was told
	// no more input follows. Such an engine would never reach Exhausted.
	ErrStalled        = errors.New("engine drained after end of input")
	ErrBadOutcome     = errors.New("engine returned an unknown outcome")
	ErrHalfTranscoded = errors.New("decoder and encoder must both be present")
	ErrAlreadyRun     = errors.New("pipeline already run")
	ErrClosed         = errors.New("pipeline closed")
)

// Error is the fatal failure reported by a Pipeline. Track is the source
// index of the failing track or NoTrack.
type Error struct {
	Kind  Kind
	Track int
	Phase string
	Err   error
}

func (self *Error) Error() string {
	if self.Track == NoTrack {
		return fmt.Sprintf("transcode: %s failure during %s: %v", self.Kind, self.Phase, self.Err)
	}
	return fmt.Sprintf("transcode: %s failure on track #%d during %s: %v", self.Kind, self.Track, self.Phase, self.Err)
}

func (self *Error) Cause() error {
	return self.Err
}

func (self *Error) Unwrap() error {
	return self.Err
}

func newError(kind Kind, track int, phase string, err error) *Error {
	return &Error{Kind: kind, Track: track, Phase: phase, Err: err}
}

// IsKind reports whether err is a pipeline Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
