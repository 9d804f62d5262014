// Package seed embeds the reference vehicle catalog.
package seed

import (
	_ "embed"
	"fmt"

	"github.com/aretw0/itpbot/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed vehicles.yaml
var vehiclesYAML []byte

type document struct {
	Vehicles []domain.Vehicle `yaml:"vehicles"`
}

// Vehicles returns the embedded catalog in file order.
func Vehicles() ([]domain.Vehicle, error) {
	return Parse(vehiclesYAML)
}

// Parse decodes a catalog document and validates every vehicle.
func Parse(data []byte) ([]domain.Vehicle, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse vehicle catalog: %w", err)
	}
	for i, v := range doc.Vehicles {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("vehicle #%d (%s): %w", i+1, v.ID, err)
		}
	}
	return doc.Vehicles, nil
}
