package ink

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func decodeExport(t *testing.T, dataURI string) image.Image {
	t.Helper()

	if !strings.HasPrefix(dataURI, "data:image/png;base64,") {
		t.Fatalf("unexpected data URI prefix: %.40s", dataURI)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("failed to decode base64 payload: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func intensityAt(img image.Image, x, y int) uint8 {
	r, _, _, _ := img.At(x, y).RGBA()
	return uint8(r >> 8)
}

func TestStrokeExportHasInkAlongPath(t *testing.T) {
	s := NewSurface(DefaultWidth, DefaultHeight, zap.NewNop())

	s.BeginStroke(Point{X: 10, Y: 10})
	s.ExtendStroke(Point{X: 50, Y: 50})
	s.EndStroke()

	dataURI, err := s.ExportImage()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	img := decodeExport(t, dataURI)

	for _, p := range []Point{{10, 10}, {30, 30}, {50, 50}} {
		if got := intensityAt(img, int(p.X), int(p.Y)); got == 0 {
			t.Fatalf("expected ink at (%v,%v), got background", p.X, p.Y)
		}
	}

	// Far outside the brush width the raster stays background.
	for _, p := range []Point{{200, 200}, {10, 150}, {150, 10}} {
		if got := intensityAt(img, int(p.X), int(p.Y)); got != 0 {
			t.Fatalf("expected background at (%v,%v), got intensity %d", p.X, p.Y, got)
		}
	}
}

func TestClearResetsEveryPixel(t *testing.T) {
	s := NewSurface(100, 100, zap.NewNop())

	s.BeginStroke(Point{X: 20, Y: 20})
	s.ExtendStroke(Point{X: 80, Y: 80})
	s.EndStroke()

	s.Clear()
	for i, v := range s.Raster().Pix {
		if v != 0 {
			t.Fatalf("pixel %d not reset, intensity %d", i, v)
		}
	}

	// Idempotent.
	s.Clear()
	for i, v := range s.Raster().Pix {
		if v != 0 {
			t.Fatalf("pixel %d dirty after second clear, intensity %d", i, v)
		}
	}
}

func TestClearEndsActiveStroke(t *testing.T) {
	s := NewSurface(100, 100, zap.NewNop())

	s.BeginStroke(Point{X: 20, Y: 20})
	s.Clear()
	s.ExtendStroke(Point{X: 80, Y: 80})

	for _, v := range s.Raster().Pix {
		if v != 0 {
			t.Fatal("extend after clear painted without an active stroke")
		}
	}
}

func TestBrushSizeAffectsSubsequentStrokesOnly(t *testing.T) {
	s := NewSurface(200, 200, zap.NewNop())

	s.BeginStroke(Point{X: 50, Y: 50})
	s.ExtendStroke(Point{X: 150, Y: 50})
	s.EndStroke()

	// A wide brush covers pixels a few rows off the path center.
	offPath := s.Raster().Pix[s.Raster().PixOffset(100, 55)]
	if offPath == 0 {
		t.Fatal("expected default brush to cover 5px off the path")
	}

	s.SetBrushSize(1)
	s.BeginStroke(Point{X: 50, Y: 150})
	s.ExtendStroke(Point{X: 150, Y: 150})
	s.EndStroke()

	// The earlier wide stroke is unaffected retroactively.
	if got := s.Raster().Pix[s.Raster().PixOffset(100, 55)]; got != offPath {
		t.Fatalf("previous stroke changed after brush resize: %d != %d", got, offPath)
	}
	// The narrow stroke does not reach 5px off its path.
	if got := s.Raster().Pix[s.Raster().PixOffset(100, 155)]; got != 0 {
		t.Fatalf("narrow brush painted 5px off the path, intensity %d", got)
	}
}

func TestSetBrushSizeRejectsNonPositive(t *testing.T) {
	s := NewSurface(100, 100, zap.NewNop())
	s.SetBrushSize(0)
	if s.BrushSize() != DefaultBrushSize {
		t.Fatalf("brush size changed to %d on invalid input", s.BrushSize())
	}
	s.SetBrushSize(-3)
	if s.BrushSize() != DefaultBrushSize {
		t.Fatalf("brush size changed to %d on invalid input", s.BrushSize())
	}
}

func TestBeginStrokeOnUninitializedSurfaceIsNoOp(t *testing.T) {
	var s Surface

	// Must not panic, must not activate a stroke.
	s.BeginStroke(Point{X: 1, Y: 1})
	s.ExtendStroke(Point{X: 5, Y: 5})
	s.EndStroke()

	if _, err := s.ExportImage(); err == nil {
		t.Fatal("expected export of uninitialized surface to fail")
	}
}

func TestInitializeReclearsExistingSurface(t *testing.T) {
	s := NewSurface(100, 100, zap.NewNop())
	s.BeginStroke(Point{X: 20, Y: 20})
	s.ExtendStroke(Point{X: 60, Y: 60})

	s.Initialize(100, 100)
	for _, v := range s.Raster().Pix {
		if v != 0 {
			t.Fatal("initialize did not re-clear the raster")
		}
	}
}

func TestDefaultDimensionsFallback(t *testing.T) {
	s := NewSurface(0, -5, zap.NewNop())
	bounds := s.Raster().Bounds()
	if bounds.Dx() != DefaultWidth || bounds.Dy() != DefaultHeight {
		t.Fatalf("unexpected fallback dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}
}
