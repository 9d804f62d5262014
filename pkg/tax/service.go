// Package tax computes the vehicle transfer tax (ITP) and keeps the audit ledger.
package tax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service resolves the rate for a vehicle and region and computes the tax due.
type Service struct {
	catalog ports.VehicleCatalog
	ledger  ports.TransferLedger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLedger records every successful calculation.
func WithLedger(l ports.TransferLedger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the clock used to stamp ledger records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a calculation service on top of a catalog.
func NewService(catalog ports.VehicleCatalog, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		logger:  logging.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate computes the tax for transferring the vehicle in the region.
// An empty region means DefaultRegion. Unknown vehicles fail with domain.ErrVehicleNotFound;
// catalog and ledger failures are wrapped in domain.ErrUpstream.
func (s *Service) Calculate(ctx context.Context, vehicleID, region string, isResident bool) (*domain.TransferResult, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = domain.DefaultRegion
	}

	vehicle, err := s.catalog.Get(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, domain.ErrVehicleNotFound) {
			return nil, fmt.Errorf("vehicle %q: %w", vehicleID, domain.ErrVehicleNotFound)
		}
		return nil, fmt.Errorf("%w: loading vehicle %q: %v", domain.ErrUpstream, vehicleID, err)
	}

	res := rates.Resolve(region, vehicle.FiscalPower, isResident)
	tax := Amount(vehicle.FiscalValue, res.Rate)

	if s.ledger != nil {
		record := domain.TransferRecord{
			ID:          s.newID(),
			VehicleID:   vehicle.ID,
			Region:      res.Region,
			AppliedRate: res.Rate,
			ComputedTax: tax,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.ledger.Append(ctx, record); err != nil {
			return nil, fmt.Errorf("%w: recording transfer: %v", domain.ErrUpstream, err)
		}
	}

	s.logger.Debug("transfer tax computed",
		"vehicle_id", vehicle.ID,
		"region", res.Region,
		"rate", res.Rate.String(),
		"tax", tax.String())

	return &domain.TransferResult{
		Vehicle:     *vehicle,
		Region:      res.Region,
		Rate:        rates.FormatRate(res.Rate),
		Tax:         tax.InexactFloat64(),
		FiscalValue: vehicle.FiscalValue,
		Notes:       res.Notes,
		AppliedRate: res.Rate,
	}, nil
}

// Amount returns fiscalValue * rate rounded half-up to cents.
func Amount(fiscalValue float64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(fiscalValue).Mul(rate).Round(2)
}
