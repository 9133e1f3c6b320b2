package billing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeBillReferenceExample(t *testing.T) {
	got, err := ComputeBill(BillInput{
		Rent:            d("4000"),
		WaterUnit:       d("4"),
		WaterRate:       d("30"),
		ElectricityUnit: d("206"),
		ElectricityRate: d("6.5"),
		AddonAmount:     decimal.Zero,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.WaterBill.Equal(d("120")) {
		t.Fatalf("water bill = %s, want 120", got.WaterBill)
	}
	if !got.ElectricityBill.Equal(d("1339")) {
		t.Fatalf("electricity bill = %s, want 1339", got.ElectricityBill)
	}
	if !got.SubTotal.Equal(d("5459")) {
		t.Fatalf("sub total = %s, want 5459", got.SubTotal)
	}
}

func TestComputeBillIsDeterministic(t *testing.T) {
	in := BillInput{
		Rent:            d("3500"),
		WaterUnit:       d("7.3"),
		WaterRate:       d("18.25"),
		ElectricityUnit: d("123.45"),
		ElectricityRate: d("8.123"),
		AddonAmount:     d("150"),
	}
	first, err := ComputeBill(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ComputeBill(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !again.WaterBill.Equal(first.WaterBill) || !again.ElectricityBill.Equal(first.ElectricityBill) || !again.SubTotal.Equal(first.SubTotal) {
			t.Fatalf("run %d produced %+v, want %+v", i, again, first)
		}
	}
}

func TestComputeBillRoundsLinesBeforeSumming(t *testing.T) {
	// water 0.5 * 4.49 = 2.245 -> 2.25; electricity 0.25.
	// Per-line rounding gives 2.50 -> 3, rounding only the total gives 2.495 -> 2.
	got, err := ComputeBill(BillInput{
		Rent:            decimal.Zero,
		WaterUnit:       d("0.5"),
		WaterRate:       d("4.49"),
		ElectricityUnit: d("1"),
		ElectricityRate: d("0.25"),
		AddonAmount:     decimal.Zero,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.WaterBill.Equal(d("2.25")) {
		t.Fatalf("water bill = %s, want 2.25", got.WaterBill)
	}
	if !got.SubTotal.Equal(d("3")) {
		t.Fatalf("sub total = %s, want 3", got.SubTotal)
	}
}

func TestComputeBillRejectsNegativeInputs(t *testing.T) {
	_, err := ComputeBill(BillInput{Rent: d("100"), WaterUnit: d("-1"), ElectricityRate: d("-2")})
	assertInvalidFields(t, err, "water_unit", "electricity_rate")
}

func TestComputeBillRejectsInputsBeyondStoredScale(t *testing.T) {
	_, err := ComputeBill(BillInput{
		Rent:            d("4000.005"),
		WaterUnit:       d("4"),
		WaterRate:       d("30.12345"),
		ElectricityUnit: d("206"),
		ElectricityRate: d("6.5"),
	})
	assertInvalidFields(t, err, "rent", "water_rate")

	if _, err := ComputeBill(BillInput{
		Rent:            d("4000.50"),
		WaterUnit:       d("4.25"),
		WaterRate:       d("30.1234"),
		ElectricityUnit: d("206"),
		ElectricityRate: d("6.5"),
	}); err != nil {
		t.Fatalf("expected in-scale inputs to pass, got %v", err)
	}
}

func assertInvalidFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if code := errors.CodeOf(err); code != errors.CodeValidation {
		t.Fatalf("expected %s, got %s", errors.CodeValidation, code)
	}
	details, ok := errors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %#v", errors.As(err).Details())
	}
	for _, field := range fields {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected %s in details %v", field, details)
		}
	}
}

func TestNetAmountAndPenalty(t *testing.T) {
	if got := NetAmount(d("5459"), d("0"), d("2000")); !got.Equal(d("7459")) {
		t.Fatalf("net amount = %s, want 7459", got)
	}
	cases := []struct{ sub, prev, want string }{
		// 10% of 5459 + 2000 = 745.9 -> 746
		{"5459", "2000", "746"},
		{"5", "0", "1"},
		{"0", "0", "0"},
	}
	for _, tc := range cases {
		if got := PenaltyFor(d(tc.sub), d(tc.prev), DefaultPenaltyRate); !got.Equal(d(tc.want)) {
			t.Fatalf("PenaltyFor(%s, %s) = %s, want %s", tc.sub, tc.prev, got, tc.want)
		}
	}
}
