package ink

import (
	"errors"
	"image"
)

// Gate tuning. A pixel qualifies as ink when its intensity exceeds the
// threshold above background; a drawing qualifies once more than
// minInkPixels pixels do. Tunable constants, not structural.
const (
	inkIntensityThreshold = 50
	minInkPixels          = 50
)

// ErrInsufficientInk is returned when a drawing is too sparse to justify a
// classification round-trip.
var ErrInsufficientInk = errors.New("not enough ink on the canvas")

// HasSufficientInk scans the raster once, counting pixels brighter than the
// ink threshold, and short-circuits as soon as the count exceeds the
// minimum. Exactly minInkPixels qualifying pixels is still insufficient.
func HasSufficientInk(raster *image.Gray) bool {
	if raster == nil {
		return false
	}
	count := 0
	for _, v := range raster.Pix {
		if v > inkIntensityThreshold {
			count++
			if count > minInkPixels {
				return true
			}
		}
	}
	return false
}
