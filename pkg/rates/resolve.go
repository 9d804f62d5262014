package rates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Resolution is the effective rate for a vehicle in a region.
type Resolution struct {
	// Region is the canonical name when the region is known, otherwise the input.
	Region string
	Known  bool
	Rate   decimal.Decimal
	// Notes describes each special rule that applied, in order. Nil when none did.
	Notes []string
}

// Resolve computes the effective rate. Unknown regions resolve to DefaultRate.
// The high-power surcharge is applied first, then the resident discount.
func Resolve(region string, fiscalPower float64, isResident bool) Resolution {
	r, ok := Lookup(region)
	if !ok {
		return Resolution{Region: region, Rate: DefaultRate}
	}

	res := Resolution{Region: r.Name, Known: true, Rate: r.BaseRate}

	if r.HighPowerSurcharge && decimal.NewFromFloat(fiscalPower).GreaterThan(HighPowerThreshold) {
		res.Rate = HighPowerRate
		res.Notes = append(res.Notes, fmt.Sprintf(
			"Tipo incrementado al %s por potencia fiscal superior a %s CV",
			FormatRate(HighPowerRate), HighPowerThreshold.String()))
	}

	if r.ResidentDiscount && isResident {
		res.Rate = res.Rate.Mul(residentFactor)
		res.Notes = append(res.Notes, fmt.Sprintf("Bonificación del 50%% por residencia en %s", r.Name))
	}

	return res
}

// FormatRate renders a fraction as a percentage with one decimal, e.g. 0.055 -> "5.5%".
func FormatRate(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(1) + "%"
}
