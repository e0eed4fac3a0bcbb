package oddsmath

import "testing"

func TestMargin(t *testing.T) {
	cases := []struct {
		name   string
		odds   []float64
		active []bool
		want   float64
	}{
		{
			name:   "Standard -110/-110 (4.76% vig)",
			odds:   []float64{1.909, 1.909},
			active: []bool{true, true},
			want:   4.76,
		},
		{
			name:   "1X2 three-way market (E4)",
			odds:   []float64{1.85, 3.40, 4.20},
			active: []bool{true, true, true},
			want:   7.28,
		},
		{
			name:   "inactive outcome excluded from sum",
			odds:   []float64{1.85, 3.40, 99.0},
			active: []bool{true, true, false},
			want:   (1.0/1.85 + 1.0/3.40 - 1.0) * 100.0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Margin(tc.odds, tc.active)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := got - tc.want; diff > 0.01 || diff < -0.01 {
				t.Errorf("Margin() = %v, want ~%v", got, tc.want)
			}
		})
	}
}

func TestMarginRejectsNonPositiveOdds(t *testing.T) {
	_, err := Margin([]float64{1.85, 0}, []bool{true, true})
	if err == nil {
		t.Fatal("expected error for non-positive odds")
	}
}

func TestMarginRejectsMismatchedLengths(t *testing.T) {
	_, err := Margin([]float64{1.85}, []bool{true, true})
	if err == nil {
		t.Fatal("expected error for mismatched slice lengths")
	}
}

func TestAmericanDecimalRoundTrip(t *testing.T) {
	for _, american := range []int{-110, +150, -250, +100} {
		decimal, err := AmericanToDecimal(american)
		if err != nil {
			t.Fatalf("AmericanToDecimal(%d): %v", american, err)
		}
		back, err := DecimalToAmerican(decimal)
		if err != nil {
			t.Fatalf("DecimalToAmerican(%v): %v", decimal, err)
		}
		if back != american {
			t.Errorf("round trip %d -> %v -> %d", american, decimal, back)
		}
	}
}
