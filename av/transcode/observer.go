package transcode

// Observer receives pipeline events, e.g. to export metrics.
// Calls happen on the goroutine running the pipeline.
type Observer interface {
	PacketRead(t *Track)   // t is nil for a packet of a dropped track
	PacketWritten(t *Track)
	FrameTranscoded(t *Track)
	FrameDiscarded(t *Track)
	StateChanged(t *Track, from, to State)
}

type nopObserver struct{}

func (nopObserver) PacketRead(*Track)                {}
func (nopObserver) PacketWritten(*Track)             {}
func (nopObserver) FrameTranscoded(*Track)           {}
func (nopObserver) FrameDiscarded(*Track)            {}
func (nopObserver) StateChanged(*Track, State, State) {}
