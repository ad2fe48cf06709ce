// Package present maps classification outcomes into the view model the
// results panel renders. It is free of any HTTP or UI dependency so the
// state machine can be tested on its own.
package present

import (
	"fmt"

	"go.uber.org/zap"
)

// PanelState enumerates the results panel states. Valid transitions:
// Tips -> Loading -> (Result | Error), a finished panel may start a new
// Loading, and Clear forces any state back to Tips.
type PanelState string

const (
	StateTips    PanelState = "tips"
	StateLoading PanelState = "loading"
	StateResult  PanelState = "result"
	StateError   PanelState = "error"
)

// Tier buckets the top probability into a coarse quality signal.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

var tierLabels = map[Tier]string{
	TierHigh:   "High confidence",
	TierMedium: "Medium confidence",
	TierLow:    "Low confidence",
}

// TierFor buckets a confidence value. Both boundaries are exclusive:
// exactly 0.8 is medium, exactly 0.5 is low.
func TierFor(confidence float64) Tier {
	switch {
	case confidence > 0.8:
		return TierHigh
	case confidence > 0.5:
		return TierMedium
	default:
		return TierLow
	}
}

// Bar is one per-digit probability bar, ordered 0 through 9.
type Bar struct {
	Digit     int     `json:"digit"`
	Percent   float64 `json:"percent"`
	Display   string  `json:"display"`
	Predicted bool    `json:"predicted"`
}

// View is the renderable snapshot of the results panel.
type View struct {
	State      PanelState `json:"state"`
	Tips       []string   `json:"tips,omitempty"`
	Digit      *int       `json:"digit,omitempty"`
	Confidence string     `json:"confidence,omitempty"`
	Tier       Tier       `json:"tier,omitempty"`
	TierLabel  string     `json:"tier_label,omitempty"`
	Bars       []Bar      `json:"bars,omitempty"`
	Message    string     `json:"message,omitempty"`
	Hints      []string   `json:"hints,omitempty"`
}

var defaultTips = []string{
	"Draw a single digit from 0 to 9",
	"Use thick strokes that fill most of the canvas",
	"Press classify when you are done",
}

var retryHints = []string{
	"Check that the classifier backend is running",
	"Clear the canvas and draw the digit again",
}

// Outcome is the minimal prediction shape the presenter needs.
type Outcome struct {
	PredictedDigit int
	Confidence     float64
	Probabilities  map[string]float64
}

// Presenter owns the panel state machine. Its show methods never fail;
// invalid transitions are logged and ignored so the panel always stays
// renderable.
type Presenter struct {
	state  PanelState
	view   View
	logger *zap.Logger
}

// NewPresenter starts a presenter in the tips placeholder state.
func NewPresenter(logger *zap.Logger) *Presenter {
	p := &Presenter{logger: logger.Named("presenter")}
	p.Reset()
	return p
}

// State returns the current panel state.
func (p *Presenter) State() PanelState {
	return p.state
}

// View returns the current renderable snapshot.
func (p *Presenter) View() View {
	return p.view
}

// Reset forces the panel back to the tips placeholder from any state.
func (p *Presenter) Reset() {
	p.state = StateTips
	p.view = View{State: StateTips, Tips: defaultTips}
}

// ShowLoading enters the loading state. Callers run the sufficiency gate
// first; re-entering loading while a request is in flight is invalid.
func (p *Presenter) ShowLoading() error {
	if p.state == StateLoading {
		p.logger.Warn("loading re-entered while already loading")
		return fmt.Errorf("panel already loading")
	}
	p.state = StateLoading
	p.view = View{State: StateLoading}
	return nil
}

// ShowResult renders a successful prediction. Only valid from loading;
// anything else is logged and dropped.
func (p *Presenter) ShowResult(outcome Outcome) {
	if p.state != StateLoading {
		p.logger.Warn("result arrived outside loading state", zap.String("state", string(p.state)))
		return
	}
	p.state = StateResult
	p.view = buildResultView(outcome)
}

// ShowError renders an error panel with retry hints. Only valid from
// loading. Never fails, whatever the error kind.
func (p *Presenter) ShowError(err error) {
	if p.state != StateLoading {
		p.logger.Warn("error arrived outside loading state", zap.String("state", string(p.state)))
		return
	}
	message := "classification failed"
	if err != nil {
		message = err.Error()
	}
	p.state = StateError
	p.view = View{State: StateError, Message: message, Hints: retryHints}
}

func buildResultView(outcome Outcome) View {
	digit := outcome.PredictedDigit
	tier := TierFor(outcome.Confidence)

	bars := make([]Bar, 0, 10)
	for d := 0; d <= 9; d++ {
		// Missing entries default to a zero-width bar.
		prob := outcome.Probabilities[fmt.Sprintf("%d", d)]
		percent := prob * 100
		bars = append(bars, Bar{
			Digit:     d,
			Percent:   percent,
			Display:   fmt.Sprintf("%.1f%%", percent),
			Predicted: d == digit,
		})
	}

	return View{
		State:      StateResult,
		Digit:      &digit,
		Confidence: fmt.Sprintf("%.1f%%", outcome.Confidence*100),
		Tier:       tier,
		TierLabel:  tierLabels[tier],
		Bars:       bars,
	}
}
