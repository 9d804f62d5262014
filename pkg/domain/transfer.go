package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRegion is used when a calculation request does not name a region.
const DefaultRegion = "Madrid"

// TransferResult is the outcome of a transfer tax calculation.
type TransferResult struct {
	Vehicle     Vehicle  `json:"vehicle"`
	Region      string   `json:"region"`
	Rate        string   `json:"rate"`
	Tax         float64  `json:"tax"`
	FiscalValue float64  `json:"fiscalValue"`
	Notes       []string `json:"notes,omitempty"`

	// AppliedRate is the exact resolved rate as a fraction.
	AppliedRate decimal.Decimal `json:"-"`
}

// TransferRecord is the audit entry written for each calculation. Records are never updated.
type TransferRecord struct {
	ID          string          `json:"id"`
	VehicleID   string          `json:"vehicleId"`
	Region      string          `json:"region"`
	AppliedRate decimal.Decimal `json:"appliedRate"`
	ComputedTax decimal.Decimal `json:"computedTax"`
	CreatedAt   time.Time       `json:"createdAt"`
}
