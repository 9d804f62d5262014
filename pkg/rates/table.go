package rates

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// DefaultRate applies to regions missing from the table.
	DefaultRate = decimal.RequireFromString("0.04")

	// HighPowerRate replaces the base rate in surcharge regions above HighPowerThreshold.
	HighPowerRate = decimal.RequireFromString("0.08")

	// HighPowerThreshold is the fiscal power (CV) that must be strictly exceeded.
	HighPowerThreshold = decimal.NewFromInt(15)

	residentFactor = decimal.RequireFromString("0.5")
)

// Region is an entry of the rate table.
type Region struct {
	Name     string
	BaseRate decimal.Decimal
	// HighPowerSurcharge marks regions that apply HighPowerRate above the threshold.
	HighPowerSurcharge bool
	// ResidentDiscount marks the special territories that halve the rate for residents.
	ResidentDiscount bool
}

func region(name, rate string) Region {
	return Region{Name: name, BaseRate: decimal.RequireFromString(rate)}
}

func surcharged(r Region) Region {
	r.HighPowerSurcharge = true
	return r
}

func territory(r Region) Region {
	r.ResidentDiscount = true
	return r
}

// table is in display order; fuzzy matching and numbered selection follow it.
var table = []Region{
	surcharged(region("Andalucía", "0.04")),
	region("Aragón", "0.04"),
	surcharged(region("Asturias", "0.04")),
	surcharged(region("Islas Baleares", "0.04")),
	region("Canarias", "0.055"),
	region("Cantabria", "0.08"),
	region("Castilla-La Mancha", "0.06"),
	surcharged(region("Castilla y León", "0.05")),
	region("Cataluña", "0.05"),
	surcharged(region("Comunidad Valenciana", "0.06")),
	region("Extremadura", "0.06"),
	region("Galicia", "0.03"),
	region("Madrid", "0.04"),
	surcharged(region("Murcia", "0.04")),
	region("Navarra", "0.04"),
	region("La Rioja", "0.04"),
	region("Álava", "0.04"),
	region("Gipuzkoa", "0.04"),
	region("Bizkaia", "0.04"),
	territory(region("Ceuta", "0.04")),
	territory(region("Melilla", "0.04")),
}

// Regions returns the table in display order.
func Regions() []Region {
	out := make([]Region, len(table))
	copy(out, table)
	return out
}

// Lookup finds a region by its canonical name, ignoring case.
func Lookup(name string) (Region, bool) {
	name = strings.TrimSpace(name)
	for _, r := range table {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Region{}, false
}

// IsSpecialTerritory reports whether the named region grants the resident discount.
func IsSpecialTerritory(name string) bool {
	r, ok := Lookup(name)
	return ok && r.ResidentDiscount
}

// Match resolves free text to a region: the input is a substring of the region name,
// or the region name is a substring of the input. Comparison is case-insensitive and
// the first entry in table order wins.
func Match(input string) (Region, bool) {
	fold := cases.Lower(language.Spanish)
	needle := fold.String(strings.TrimSpace(input))
	if needle == "" {
		return Region{}, false
	}
	for _, r := range table {
		name := fold.String(r.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return r, true
		}
	}
	return Region{}, false
}

// At returns the region at a 1-based position of the display order.
func At(position int) (Region, bool) {
	if position < 1 || position > len(table) {
		return Region{}, false
	}
	return table[position-1], true
}
