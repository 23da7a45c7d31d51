package reliability

import "testing"

func TestBackoffGrowsAndCapsAtMax(t *testing.T) {
	b := NewBackoff()
	b.Jitter = 0 // deterministic for this assertion
	if d := b.Delay(1); d != b.Base {
		t.Fatalf("expected first delay to equal base, got %v", d)
	}
	if d := b.Delay(10); d != b.Max {
		t.Fatalf("expected delay to cap at max, got %v", d)
	}
}

func TestBudgetCheckFlagsExhaustion(t *testing.T) {
	budget := &Budget{SessionID: "s1", MaxTokens: 100}
	if err := budget.Check(); err != nil {
		t.Fatalf("expected no error before spend, got %v", err)
	}
	budget.Record(150, 0)
	if err := budget.Check(); err == nil {
		t.Fatal("expected budget exhaustion error")
	}
}

func TestCalibrateInterpolatesBetweenBands(t *testing.T) {
	curve := Curve{0.5: 0.4, 0.7: 0.8}
	got := curve.Calibrate(0.6)
	if got <= 0.4 || got >= 0.8 {
		t.Fatalf("expected interpolated value between bands, got %v", got)
	}
}
