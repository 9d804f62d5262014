package ports

import (
	"context"

	"github.com/aretw0/itpbot/pkg/domain"
)

// VehicleCatalog is the read side of the vehicle storage.
type VehicleCatalog interface {
	// Search returns vehicles of the (normalized) maker in insertion order.
	// A nil year matches every year. No match returns an empty slice and no error.
	Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error)

	// Get returns domain.ErrVehicleNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*domain.Vehicle, error)
}

// CatalogSeeder loads vehicles into a catalog.
type CatalogSeeder interface {
	// Seed validates, normalizes and stores the vehicles, assigning ids to those without one.
	// It returns the stored vehicles.
	Seed(ctx context.Context, vehicles []domain.Vehicle) ([]domain.Vehicle, error)
}

// TransferLedger is the append-only log of calculations.
type TransferLedger interface {
	Append(ctx context.Context, record domain.TransferRecord) error
	// List returns the records of a vehicle, oldest first. An empty id lists all records.
	List(ctx context.Context, vehicleID string) ([]domain.TransferRecord, error)
}
