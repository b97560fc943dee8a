package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMulRatioRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name     string
		amount   Cents
		num, den int64
		want     Cents
	}{
		{name: "exact division", amount: 9000, num: 10, den: 30, want: 3000},
		{name: "repeating third rounds down", amount: 13000, num: 10, den: 30, want: 4333},
		{name: "exact half rounds up", amount: 5, num: 1, den: 2, want: 3},
		{name: "just below half rounds down", amount: 1249, num: 1, den: 1000, want: 1},
		{name: "negative half rounds away", amount: -5, num: 1, den: 2, want: -3},
		{name: "negative repeating", amount: -13000, num: 10, den: 30, want: -4333},
		{name: "zero amount", amount: 0, num: 7, den: 13, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.MulRatio(tt.num, tt.den); got != tt.want {
				t.Fatalf("MulRatio(%d, %d/%d) = %d, want %d", tt.amount, tt.num, tt.den, got, tt.want)
			}
		})
	}
}

func TestApplyBasisPointsSingleStep(t *testing.T) {
	// 6% of $40.00 is $2.40 exactly.
	if got := Cents(4000).ApplyBasisPoints(600); got != 240 {
		t.Fatalf("6%% of 4000 = %d, want 240", got)
	}
	// 6% of $0.25 is 1.5 cents; rounds up to 2.
	if got := Cents(25).ApplyBasisPoints(600); got != 2 {
		t.Fatalf("6%% of 25 = %d, want 2", got)
	}
	// 6% of $0.24 is 1.44 cents; rounds down to 1.
	if got := Cents(24).ApplyBasisPoints(600); got != 1 {
		t.Fatalf("6%% of 24 = %d, want 1", got)
	}
}

func TestSumIsExactAndOrderIndependent(t *testing.T) {
	amounts := []Cents{1, 2999, 30, 4567, 1}
	forward := Sum(amounts...)
	reversed := Sum(amounts[4], amounts[3], amounts[2], amounts[1], amounts[0])
	if forward != reversed {
		t.Fatalf("sum not order independent: %d vs %d", forward, reversed)
	}
	if forward != 7598 {
		t.Fatalf("sum = %d, want 7598", forward)
	}
}

func TestDecimalBoundaryRoundTrip(t *testing.T) {
	amount, err := FromDecimalString("45.00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if amount != 4500 {
		t.Fatalf("parsed %d, want 4500", amount)
	}
	if amount.String() != "45.00" {
		t.Fatalf("rendered %q, want 45.00", amount.String())
	}

	if _, err := FromDecimalString("1.005"); err == nil {
		t.Fatalf("expected sub-cent precision to be rejected")
	}
	if _, err := FromDecimalString("not-money"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFromDecimal(t *testing.T) {
	amount, err := FromDecimal(decimal.NewFromFloat(13.33))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if amount != 1333 {
		t.Fatalf("converted %d, want 1333", amount)
	}
}

func TestStringRendersNegativeAmounts(t *testing.T) {
	if got := Cents(-1333).String(); got != "-13.33" {
		t.Fatalf("rendered %q, want -13.33", got)
	}
}
