package format

import (
	"github.com/tyrese/avtranscode/av/avutil"
	"github.com/tyrese/avtranscode/cgo/ffmpeg"
	"github.com/tyrese/avtranscode/format/framecrc"
	"github.com/tyrese/avtranscode/format/rtp"
)

// RegisterAll adds the built-in sinks and then FFmpeg, which takes every
// locator the others leave.
func RegisterAll(options ffmpeg.OpenOptions) {
	avutil.AddHandler(framecrc.Handler)
	avutil.AddHandler(rtp.Handler)
	avutil.AddHandler(ffmpeg.Handler(options))
}
