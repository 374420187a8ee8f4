package metrics

import "github.com/tyrese/avtranscode/av/transcode"

// pipelineObserver implements transcode.Observer using the counters declared
// in this package.
type pipelineObserver struct{}

func NewPipelineObserver() transcode.Observer {
	return &pipelineObserver{}
}

func trackType(t *transcode.Track) string {
	return t.Stream.Type().String()
}

func (o *pipelineObserver) PacketRead(t *transcode.Track) {
	if t == nil {
		PacketsDropped.Inc()
		return
	}
	PacketsRead.WithLabelValues(trackType(t)).Inc()
}

func (o *pipelineObserver) PacketWritten(t *transcode.Track) {
	PacketsWritten.WithLabelValues(trackType(t)).Inc()
}

func (o *pipelineObserver) FrameTranscoded(t *transcode.Track) {
	FramesTranscoded.WithLabelValues(trackType(t)).Inc()
}

func (o *pipelineObserver) FrameDiscarded(t *transcode.Track) {
	FramesDiscarded.WithLabelValues(trackType(t)).Inc()
}

func (o *pipelineObserver) StateChanged(t *transcode.Track, from, to transcode.State) {
	StateTransitions.WithLabelValues(trackType(t), to.String()).Inc()
}
