package memory

import (
	"context"
	"sync"

	"github.com/aretw0/itpbot/pkg/domain"
)

// Ledger implements ports.TransferLedger in memory.
type Ledger struct {
	mu      sync.RWMutex
	records []domain.TransferRecord
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a calculation.
func (l *Ledger) Append(ctx context.Context, record domain.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// List returns the records of a vehicle (all records when vehicleID is empty).
func (l *Ledger) List(ctx context.Context, vehicleID string) ([]domain.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []domain.TransferRecord{}
	for _, r := range l.records {
		if vehicleID == "" || r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	return out, nil
}
