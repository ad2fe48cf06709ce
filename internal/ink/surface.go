package ink

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"math"

	"go.uber.org/zap"
)

// Default canvas geometry and brush, matching the web drawing pad.
const (
	DefaultWidth     = 280
	DefaultHeight    = 280
	DefaultBrushSize = 15

	backgroundIntensity = 0
	strokeIntensity     = 255
)

// dataURIPrefix is the scheme the classification endpoint strips before decoding.
const dataURIPrefix = "data:image/png;base64,"

// Point is a position on the drawable surface, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface holds the raster a drawing session paints on. Strokes are
// rasterized immediately as they are extended; nothing is retained
// between sessions. Surface is not safe for concurrent use; callers
// serialize access the way a browser event loop would.
type Surface struct {
	raster       *image.Gray
	brushSize    int
	strokeActive bool
	last         Point
	logger       *zap.Logger
}

// NewSurface allocates a surface of the given dimensions filled with the
// background intensity. Non-positive dimensions fall back to the defaults.
func NewSurface(width, height int, logger *zap.Logger) *Surface {
	s := &Surface{
		brushSize: DefaultBrushSize,
		logger:    logger.Named("ink_surface"),
	}
	s.Initialize(width, height)
	return s
}

// Initialize (re)allocates the raster and fills it with background.
// Calling it on an already initialized surface just re-clears.
func (s *Surface) Initialize(width, height int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	s.raster = image.NewGray(image.Rect(0, 0, width, height))
	s.strokeActive = false
}

// BeginStroke starts a new stroke path at p. Nothing is painted until the
// stroke is extended. A surface that was never initialized logs and ignores
// the call.
func (s *Surface) BeginStroke(p Point) {
	if s.raster == nil {
		if s.logger != nil {
			s.logger.Warn("begin stroke on uninitialized surface")
		}
		return
	}
	s.strokeActive = true
	s.last = p
}

// ExtendStroke rasterizes a segment from the last point to p with the
// current brush. No-op when no stroke is active.
func (s *Surface) ExtendStroke(p Point) {
	if !s.strokeActive || s.raster == nil {
		return
	}
	s.paintSegment(s.last, p)
	s.last = p
}

// EndStroke finalizes the active stroke. Painted pixels stay.
func (s *Surface) EndStroke() {
	s.strokeActive = false
}

// Clear resets every pixel to the background intensity. Idempotent.
func (s *Surface) Clear() {
	if s.raster == nil {
		return
	}
	for i := range s.raster.Pix {
		s.raster.Pix[i] = backgroundIntensity
	}
	s.strokeActive = false
}

// SetBrushSize updates the width used by subsequent strokes. The stroke
// currently on the raster is unaffected. Non-positive sizes are rejected.
func (s *Surface) SetBrushSize(n int) {
	if n <= 0 {
		if s.logger != nil {
			s.logger.Warn("ignoring non-positive brush size", zap.Int("size", n))
		}
		return
	}
	s.brushSize = n
}

// BrushSize returns the current stroke width.
func (s *Surface) BrushSize() int {
	return s.brushSize
}

// Raster exposes the backing grid for the sufficiency gate and tests.
func (s *Surface) Raster() *image.Gray {
	return s.raster
}

// ExportImage encodes the raster losslessly as a base64 PNG data URI.
// The full canvas is sent as-is; any resizing to the model input size is
// the classification endpoint's job.
func (s *Surface) ExportImage() (string, error) {
	if s.raster == nil {
		return "", errors.New("surface not initialized")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.raster); err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// paintSegment stamps the brush along the line from a to b. Stamping a
// filled disc at every step gives round caps and joins for free.
func (s *Surface) paintSegment(a, b Point) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)

	steps := int(math.Ceil(length))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		s.stampBrush(a.X+dx*t, a.Y+dy*t)
	}
}

func (s *Surface) stampBrush(cx, cy float64) {
	radius := float64(s.brushSize) / 2
	bounds := s.raster.Bounds()

	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			fx := float64(x) - cx
			fy := float64(y) - cy
			if fx*fx+fy*fy <= radius*radius {
				s.raster.Pix[s.raster.PixOffset(x, y)] = strokeIntensity
			}
		}
	}
}
