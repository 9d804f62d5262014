package memory

import (
	"context"
	"sync"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/google/uuid"
)

// Catalog implements ports.VehicleCatalog and ports.CatalogSeeder in memory.
// Search results follow insertion order.
type Catalog struct {
	mu       sync.RWMutex
	vehicles []domain.Vehicle
	byID     map[string]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Seed validates and appends vehicles. Invalid input leaves the catalog untouched.
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

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range prepared {
		if idx, ok := c.byID[v.ID]; ok {
			c.vehicles[idx] = v
			continue
		}
		c.byID[v.ID] = len(c.vehicles)
		c.vehicles = append(c.vehicles, v)
	}
	return prepared, nil
}

// Search returns the vehicles of a maker, optionally restricted to one year.
func (c *Catalog) Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error) {
	maker = domain.NormalizeMaker(maker)

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []domain.Vehicle{}
	for _, v := range c.vehicles {
		if v.Maker != maker {
			continue
		}
		if year != nil && v.Year != *year {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Get returns a vehicle by id.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byID[id]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	v := c.vehicles[idx]
	return &v, nil
}
