package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FuelType is the propulsion of a vehicle.
type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
	FuelHybrid   FuelType = "hybrid"
)

// Valid reports whether f is one of the known fuel types.
func (f FuelType) Valid() bool {
	switch f {
	case FuelGasoline, FuelDiesel, FuelElectric, FuelHybrid:
		return true
	}
	return false
}

// Vehicle is a catalog entry. It is immutable once seeded.
type Vehicle struct {
	ID          string   `json:"id" yaml:"id"`
	Maker       string   `json:"maker" yaml:"maker"`
	Model       string   `json:"model" yaml:"model"`
	Year        int      `json:"year" yaml:"year"`
	FiscalPower float64  `json:"fiscalPower" yaml:"fiscal_power"`
	FiscalValue float64  `json:"fiscalValue" yaml:"fiscal_value"`
	FuelType    FuelType `json:"fuelType" yaml:"fuel_type"`
}

// NormalizeMaker lower-cases and trims a maker name the way the catalog stores it.
func NormalizeMaker(maker string) string {
	return cases.Lower(language.Spanish).String(strings.TrimSpace(maker))
}

// Validate checks the invariants a vehicle must satisfy before it is seeded.
func (v Vehicle) Validate() error {
	switch {
	case NormalizeMaker(v.Maker) == "":
		return fmt.Errorf("%w: maker is required", ErrInvalidVehicle)
	case strings.TrimSpace(v.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidVehicle)
	case v.Year <= 0:
		return fmt.Errorf("%w: year must be positive, got %d", ErrInvalidVehicle, v.Year)
	case v.FiscalPower < 0:
		return fmt.Errorf("%w: fiscal power cannot be negative", ErrInvalidVehicle)
	case v.FiscalValue < 0:
		return fmt.Errorf("%w: fiscal value cannot be negative", ErrInvalidVehicle)
	case !v.FuelType.Valid():
		return fmt.Errorf("%w: unknown fuel type %q", ErrInvalidVehicle, v.FuelType)
	}
	return nil
}

// Normalized returns a copy with the maker normalized and the model trimmed.
func (v Vehicle) Normalized() Vehicle {
	v.Maker = NormalizeMaker(v.Maker)
	v.Model = strings.TrimSpace(v.Model)
	return v
}

// Label renders the vehicle for a numbered list, e.g. "Corolla (2020)".
func (v Vehicle) Label() string {
	return fmt.Sprintf("%s (%d)", v.Model, v.Year)
}
