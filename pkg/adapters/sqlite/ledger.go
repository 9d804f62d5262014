package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/shopspring/decimal"
)

// Ledger implements ports.TransferLedger. Amounts are stored as decimal text.
type Ledger struct {
	db *sql.DB
}

// Append records a calculation.
func (l *Ledger) Append(ctx context.Context, r domain.TransferRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO transfers (id, vehicle_id, region, applied_rate, computed_tax, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.VehicleID, r.Region, r.AppliedRate.String(), r.ComputedTax.String(),
		r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append transfer %s: %w", r.ID, err)
	}
	return nil
}

// List returns the records of a vehicle (all records when vehicleID is empty) in insertion order.
func (l *Ledger) List(ctx context.Context, vehicleID string) ([]domain.TransferRecord, error) {
	query := "SELECT id, vehicle_id, region, applied_rate, computed_tax, created_at FROM transfers"
	var args []any
	if vehicleID != "" {
		query += " WHERE vehicle_id = ?"
		args = append(args, vehicleID)
	}
	query += " ORDER BY rowid"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	out := []domain.TransferRecord{}
	for rows.Next() {
		var r domain.TransferRecord
		var rate, tax, created string
		if err := rows.Scan(&r.ID, &r.VehicleID, &r.Region, &rate, &tax, &created); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if r.AppliedRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("transfer %s: bad rate %q: %w", r.ID, rate, err)
		}
		if r.ComputedTax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("transfer %s: bad tax %q: %w", r.ID, tax, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("transfer %s: bad timestamp %q: %w", r.ID, created, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
