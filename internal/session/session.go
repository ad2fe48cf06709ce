// Package session holds the per-drawing state of one user: the ink
// surface, the results panel, and the single-classification-in-flight
// guard. Sessions are transient; nothing survives the process.
package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mr-rsr/mnist-gateway/internal/ink"
	"github.com/mr-rsr/mnist-gateway/internal/present"
)

// ErrClassificationInFlight is returned when a classification is requested
// while a previous one has not finished. One request per gesture.
var ErrClassificationInFlight = errors.New("classification already in flight")

// Session owns one drawing surface and its results panel. All mutations
// go through the session mutex; the browser's single event loop becomes a
// lock here.
type Session struct {
	ID string

	mu        sync.Mutex
	surface   *ink.Surface
	presenter *present.Presenter
	inFlight  bool
	seq       uint64
	logger    *zap.Logger
}

// New creates a session with a freshly cleared surface.
func New(id string, width, height int, logger *zap.Logger) *Session {
	logger = logger.With(zap.String("session_id", id))
	return &Session{
		ID:        id,
		surface:   ink.NewSurface(width, height, logger),
		presenter: present.NewPresenter(logger),
		logger:    logger.Named("session"),
	}
}

// ApplyEvents feeds a batch of normalized pointer events to the surface.
func (s *Session) ApplyEvents(events []ink.PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		ink.Apply(s.surface, ev)
	}
}

// SetBrushSize adjusts the stroke width for subsequent strokes.
func (s *Session) SetBrushSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.SetBrushSize(n)
}

// Clear wipes the raster and forces the panel back to the tips state.
// Brush size persists across clears.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.Clear()
	s.presenter.Reset()
}

// ExportImage returns the current drawing as a PNG data URI.
func (s *Session) ExportImage() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.ExportImage()
}

// View snapshots the results panel.
func (s *Session) View() present.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presenter.View()
}

// StartClassification runs the sufficiency gate, exports the drawing, and
// moves the panel to loading. The returned token identifies this attempt;
// a later attempt invalidates earlier tokens so stale responses are
// dropped. Fails with ErrClassificationInFlight or ink.ErrInsufficientInk
// without touching the panel.
func (s *Session) StartClassification() (imageData string, token uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return "", 0, ErrClassificationInFlight
	}
	if !ink.HasSufficientInk(s.surface.Raster()) {
		return "", 0, ink.ErrInsufficientInk
	}

	imageData, err = s.surface.ExportImage()
	if err != nil {
		return "", 0, err
	}
	if err := s.presenter.ShowLoading(); err != nil {
		return "", 0, err
	}
	s.inFlight = true
	s.seq++
	return imageData, s.seq, nil
}

// FinishSuccess completes the attempt identified by token with a
// prediction. Stale tokens are logged and dropped.
func (s *Session) FinishSuccess(token uint64, outcome present.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settle(token) {
		return
	}
	s.presenter.ShowResult(outcome)
}

// FinishError completes the attempt identified by token with an error
// panel. Stale tokens are logged and dropped.
func (s *Session) FinishError(token uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settle(token) {
		return
	}
	s.presenter.ShowError(cause)
}

func (s *Session) settle(token uint64) bool {
	if token != s.seq {
		s.logger.Warn("dropping stale classification response",
			zap.Uint64("token", token), zap.Uint64("current", s.seq))
		return false
	}
	s.inFlight = false
	return true
}
