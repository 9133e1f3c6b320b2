// Package billing turns metered usage and fixed fees into an invoice's charge
// breakdown. Everything here is pure and deterministic.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

// DefaultPenaltyRate is the overdue surcharge applied once per invoice.
var DefaultPenaltyRate = decimal.RequireFromString("0.10")

// BillInput carries the editable inputs of one invoice.
type BillInput struct {
	Rent            decimal.Decimal
	WaterUnit       decimal.Decimal
	WaterRate       decimal.Decimal
	ElectricityUnit decimal.Decimal
	ElectricityRate decimal.Decimal
	AddonAmount     decimal.Decimal
}

// Breakdown is the computed charge for one period, before penalty and carry-forward.
type Breakdown struct {
	WaterBill       decimal.Decimal `json:"water_bill"`
	ElectricityBill decimal.Decimal `json:"electricity_bill"`
	SubTotal        decimal.Decimal `json:"sub_total"`
}

// Rates is a utility tariff.
type Rates struct {
	Water       decimal.Decimal
	Electricity decimal.Decimal
}

// ComputeBill applies the two-stage rounding policy: each usage line is
// rounded to cents, the subtotal to whole units.
func ComputeBill(in BillInput) (Breakdown, error) {
	if err := in.validate(); err != nil {
		return Breakdown{}, err
	}
	water := money.Round2(in.WaterUnit.Mul(in.WaterRate))
	electricity := money.Round2(in.ElectricityUnit.Mul(in.ElectricityRate))
	return Breakdown{
		WaterBill:       water,
		ElectricityBill: electricity,
		SubTotal:        money.RoundUnit(money.Sum(in.Rent, water, electricity, in.AddonAmount)),
	}, nil
}

// NetAmount is the amount owed on an invoice.
func NetAmount(subTotal, penalty, previousBalance decimal.Decimal) decimal.Decimal {
	return money.RoundUnit(money.Sum(subTotal, penalty, previousBalance))
}

// PenaltyFor returns the one-time overdue surcharge on subTotal + previousBalance.
func PenaltyFor(subTotal, previousBalance, rate decimal.Decimal) decimal.Decimal {
	return money.RoundUnit(rate.Mul(subTotal.Add(previousBalance)))
}

func (in BillInput) validate() error {
	fields := []struct {
		name   string
		value  decimal.Decimal
		places int32
	}{
		{"rent", in.Rent, money.CentPlaces},
		{"water_unit", in.WaterUnit, money.CentPlaces},
		{"water_rate", in.WaterRate, money.RatePlaces},
		{"electricity_unit", in.ElectricityUnit, money.CentPlaces},
		{"electricity_rate", in.ElectricityRate, money.RatePlaces},
		{"addon_amount", in.AddonAmount, money.CentPlaces},
	}
	invalid := map[string]string{}
	for _, f := range fields {
		switch {
		case f.value.IsNegative():
			invalid[f.name] = "must be non-negative"
		case !money.Fits(f.value, f.places):
			invalid[f.name] = fmt.Sprintf("must have at most %d decimal places and %d integer digits", f.places, money.ColumnDigits-f.places)
		}
	}
	if len(invalid) > 0 {
		return errors.New(errors.CodeValidation, "invalid bill inputs").WithDetails(invalid)
	}
	return nil
}
