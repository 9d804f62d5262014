package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/google/uuid"
)

const vehicleColumns = "id, maker, model, year, fiscal_power, fiscal_value, fuel_type"

// Catalog implements ports.VehicleCatalog and ports.CatalogSeeder.
// Search results follow insertion order (rowid); re-seeding an id updates it in place.
type Catalog struct {
	db *sql.DB
}

// Seed validates and upserts vehicles in one transaction.
func (c *Catalog) Seed(ctx context.Context, vehicles []domain.Vehicle) ([]domain.Vehicle, error) {
	prepared := make([]domain.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		v = v.Normalized()
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		prepared = append(prepared, v)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			maker = excluded.maker,
			model = excluded.model,
			year = excluded.year,
			fiscal_power = excluded.fiscal_power,
			fiscal_value = excluded.fiscal_value,
			fuel_type = excluded.fuel_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, v := range prepared {
		if _, err := stmt.ExecContext(ctx, v.ID, v.Maker, v.Model, v.Year, v.FiscalPower, v.FiscalValue, string(v.FuelType)); err != nil {
			return nil, fmt.Errorf("failed to insert vehicle %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seed: %w", err)
	}
	return prepared, nil
}

// Search returns the vehicles of a maker, optionally restricted to one year.
func (c *Catalog) Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error) {
	query := "SELECT " + vehicleColumns + " FROM vehicles WHERE maker = ?"
	args := []any{domain.NormalizeMaker(maker)}
	if year != nil {
		query += " AND year = ?"
		args = append(args, *year)
	}
	query += " ORDER BY rowid"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vehicles: %w", err)
	}
	defer rows.Close()

	out := []domain.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Get returns a vehicle by id.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.Vehicle, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", id)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Count returns the number of vehicles.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicles").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(s scanner) (domain.Vehicle, error) {
	var v domain.Vehicle
	var fuel string
	if err := s.Scan(&v.ID, &v.Maker, &v.Model, &v.Year, &v.FiscalPower, &v.FiscalValue, &fuel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("failed to scan vehicle: %w", err)
	}
	v.FuelType = domain.FuelType(fuel)
	return v, nil
}
