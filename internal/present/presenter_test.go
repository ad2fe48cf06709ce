package present

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Tier
	}{
		{0.93, TierHigh},
		{0.81, TierHigh},
		{0.8, TierMedium}, // exclusive upper boundary
		{0.6, TierMedium},
		{0.51, TierMedium},
		{0.5, TierLow}, // exclusive lower boundary
		{0.1, TierLow},
		{0, TierLow},
	}
	for _, tc := range tests {
		if got := TierFor(tc.confidence); got != tc.want {
			t.Fatalf("TierFor(%v) = %v, want %v", tc.confidence, got, tc.want)
		}
	}
}

func TestPresenterStartsWithTips(t *testing.T) {
	p := NewPresenter(zap.NewNop())
	if p.State() != StateTips {
		t.Fatalf("unexpected initial state %q", p.State())
	}
	if len(p.View().Tips) == 0 {
		t.Fatal("tips placeholder must carry guidance text")
	}
}

func TestPresenterRendersHighConfidenceResult(t *testing.T) {
	p := NewPresenter(zap.NewNop())
	if err := p.ShowLoading(); err != nil {
		t.Fatalf("loading transition failed: %v", err)
	}

	p.ShowResult(Outcome{
		PredictedDigit: 7,
		Confidence:     0.93,
		Probabilities:  map[string]float64{"7": 0.93, "3": 0.04},
	})

	view := p.View()
	if view.State != StateResult {
		t.Fatalf("unexpected state %q", view.State)
	}
	if view.Digit == nil || *view.Digit != 7 {
		t.Fatalf("unexpected digit %v", view.Digit)
	}
	if view.Tier != TierHigh {
		t.Fatalf("unexpected tier %q", view.Tier)
	}
	if view.Confidence != "93.0%" {
		t.Fatalf("unexpected confidence %q", view.Confidence)
	}

	if len(view.Bars) != 10 {
		t.Fatalf("expected 10 bars, got %d", len(view.Bars))
	}
	for d, bar := range view.Bars {
		if bar.Digit != d {
			t.Fatalf("bars out of order at index %d: digit %d", d, bar.Digit)
		}
	}
	if !view.Bars[7].Predicted {
		t.Fatal("predicted bar not emphasized")
	}
	if view.Bars[3].Predicted {
		t.Fatal("non-predicted bar emphasized")
	}
	if view.Bars[7].Display != "93.0%" {
		t.Fatalf("unexpected bar display %q", view.Bars[7].Display)
	}
}

func TestMissingProbabilityDefaultsToZero(t *testing.T) {
	p := NewPresenter(zap.NewNop())
	if err := p.ShowLoading(); err != nil {
		t.Fatalf("loading transition failed: %v", err)
	}
	p.ShowResult(Outcome{
		PredictedDigit: 7,
		Confidence:     0.93,
		Probabilities:  map[string]float64{"7": 0.93}, // "4" absent
	})

	bar := p.View().Bars[4]
	if bar.Percent != 0 || bar.Display != "0.0%" {
		t.Fatalf("missing probability did not default to zero: %+v", bar)
	}
}

func TestErrorPanelCarriesMessageAndHints(t *testing.T) {
	p := NewPresenter(zap.NewNop())
	if err := p.ShowLoading(); err != nil {
		t.Fatalf("loading transition failed: %v", err)
	}
	p.ShowError(errors.New("classification endpoint returned HTTP 500"))

	view := p.View()
	if view.State != StateError {
		t.Fatalf("unexpected state %q", view.State)
	}
	if view.Message != "classification endpoint returned HTTP 500" {
		t.Fatalf("unexpected message %q", view.Message)
	}
	if len(view.Hints) == 0 {
		t.Fatal("error panel must carry retry hints")
	}
}

func TestResetForcesTipsFromAnyState(t *testing.T) {
	p := NewPresenter(zap.NewNop())

	p.ShowLoading() //nolint:errcheck
	p.Reset()
	if p.State() != StateTips {
		t.Fatalf("reset from loading left state %q", p.State())
	}

	p.ShowLoading() //nolint:errcheck
	p.ShowError(errors.New("boom"))
	p.Reset()
	if p.State() != StateTips {
		t.Fatalf("reset from error left state %q", p.State())
	}
}

func TestInvalidTransitionsAreIgnored(t *testing.T) {
	p := NewPresenter(zap.NewNop())

	// Result without loading is dropped.
	p.ShowResult(Outcome{PredictedDigit: 1, Confidence: 0.9})
	if p.State() != StateTips {
		t.Fatalf("result outside loading changed state to %q", p.State())
	}

	// Error without loading is dropped.
	p.ShowError(errors.New("boom"))
	if p.State() != StateTips {
		t.Fatalf("error outside loading changed state to %q", p.State())
	}

	// Loading cannot be re-entered while loading.
	if err := p.ShowLoading(); err != nil {
		t.Fatalf("first loading transition failed: %v", err)
	}
	if err := p.ShowLoading(); err == nil {
		t.Fatal("expected re-entering loading to fail")
	}
}

func TestFinishedPanelCanStartANewAttempt(t *testing.T) {
	p := NewPresenter(zap.NewNop())
	p.ShowLoading() //nolint:errcheck
	p.ShowResult(Outcome{PredictedDigit: 2, Confidence: 0.7, Probabilities: map[string]float64{"2": 0.7}})

	if err := p.ShowLoading(); err != nil {
		t.Fatalf("re-classification after a result must be allowed: %v", err)
	}
}
