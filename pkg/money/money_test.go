package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"-1.005":  "-1.01",
		"1339":    "1339",
		"12.345":  "12.35",
		"-12.345": "-12.35",
	}
	for in, want := range cases {
		if got := Round2(d(in)); !got.Equal(d(want)) {
			t.Fatalf("Round2(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestRoundUnitHalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"0.5":     "1",
		"1.49":    "1",
		"2.5":     "3",
		"-2.5":    "-3",
		"5458.50": "5459",
	}
	for in, want := range cases {
		if got := RoundUnit(d(in)); !got.Equal(d(want)) {
			t.Fatalf("RoundUnit(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestTwoStageRoundingDiffersFromSingleStage(t *testing.T) {
	a := d("2.245")
	b := d("0.25")
	// Rounded line 2.25 + 0.25 = 2.50 -> 3; unrounded 2.495 -> 2.
	if got := RoundUnit(Round2(a).Add(b)); !got.Equal(d("3")) {
		t.Fatalf("two-stage rounding = %s, want 3", got)
	}
	if got := RoundUnit(a.Add(b)); !got.Equal(d("2")) {
		t.Fatalf("single-stage rounding = %s, want 2", got)
	}
}

func TestMax0AndSum(t *testing.T) {
	if !Max0(d("-3")).IsZero() {
		t.Fatal("expected negative amount to clamp to zero")
	}
	if !Max0(d("3")).Equal(d("3")) {
		t.Fatal("expected positive amount to pass through")
	}
	if got := Sum(d("1.10"), d("2.20"), d("-0.30")); !got.Equal(d("3")) {
		t.Fatalf("Sum = %s, want 3", got)
	}
	if !Sum().IsZero() {
		t.Fatal("expected empty sum to be zero")
	}
}

func TestFits(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   bool
	}{
		{"5459", CentPlaces, true},
		{"0.01", CentPlaces, true},
		{"1.50000", CentPlaces, true},
		{"0.001", CentPlaces, false},
		{"6.1234", RatePlaces, true},
		{"6.12345", RatePlaces, false},
		{"9999999999.99", CentPlaces, true},
		{"10000000000", CentPlaces, false},
		{"-12.5", CentPlaces, true},
	}
	for _, tc := range cases {
		if got := Fits(d(tc.in), tc.places); got != tc.want {
			t.Fatalf("Fits(%s, %d) = %v, want %v", tc.in, tc.places, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(" 6.5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("6.5")) {
		t.Fatalf("Parse = %s, want 6.5", got)
	}

	if _, err := Parse(""); err == nil {
		t.Fatal("expected blank amount to fail")
	}
	if _, err := Parse("abc"); err == nil {
		t.Fatal("expected non-numeric amount to fail")
	}

	opt, err := ParseOptional("  ")
	if err != nil || opt != nil {
		t.Fatalf("ParseOptional(blank) = %v, %v; want nil, nil", opt, err)
	}
	opt, err = ParseOptional("30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt == nil || !opt.Equal(d("30")) {
		t.Fatalf("ParseOptional(30) = %v", opt)
	}

	if got := Format(d("1339")); got != "1339.00" {
		t.Fatalf("Format = %q, want 1339.00", got)
	}
}
