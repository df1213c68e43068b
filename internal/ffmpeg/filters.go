package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Chain is a comma-joined ffmpeg video filter graph
type Chain []string

// SampleChain builds the filter used for frame sampling. Frames are taken
// every interval seconds, scaled to cover width x height and center cropped,
// so the encoder always sees square inputs without letterboxing.
func SampleChain(interval float64, width, height int) Chain {
	var c Chain
	if interval > 0 {
		c = append(c, "fps="+strconv.FormatFloat(1/interval, 'f', -1, 64))
	}
	if width > 0 && height > 0 {
		c = append(c,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height),
			fmt.Sprintf("crop=%d:%d", width, height),
		)
	}
	return c
}

func (c Chain) String() string {
	return strings.Join(c, ",")
}
