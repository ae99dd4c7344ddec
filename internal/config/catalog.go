package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paddock-market/internal/domain"
)

// CatalogFile is a YAML description of riders and constructors per sport
type CatalogFile struct {
	Sports []SportCatalog `yaml:"sports"`
}

// SportCatalog is the catalog of one championship
type SportCatalog struct {
	Sport        domain.Sport         `yaml:"sport"`
	Constructors []CatalogConstructor `yaml:"constructors"`
	Riders       []CatalogRider       `yaml:"riders"`
}

// CatalogConstructor is a constructor entry
type CatalogConstructor struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Price int64  `yaml:"price"`
}

// CatalogRider is a rider entry; base_price defaults to price
type CatalogRider struct {
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	Team          string `yaml:"team"`
	ConstructorID *int64 `yaml:"constructor_id"`
	Price         int64  `yaml:"price"`
	BasePrice     int64  `yaml:"base_price"`
}

// LoadCatalog reads a catalog file
func LoadCatalog(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var catalog CatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	for i, sc := range catalog.Sports {
		sport, err := domain.ParseSport(string(sc.Sport))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		catalog.Sports[i].Sport = sport
	}
	return &catalog, nil
}

// Entities converts the entries to domain values
func (sc SportCatalog) Entities() ([]domain.Constructor, []domain.Rider) {
	constructors := make([]domain.Constructor, 0, len(sc.Constructors))
	for _, c := range sc.Constructors {
		constructors = append(constructors, domain.Constructor{
			ID:           c.ID,
			Sport:        sc.Sport,
			Name:         c.Name,
			Price:        c.Price,
			InitialPrice: c.Price,
		})
	}

	riders := make([]domain.Rider, 0, len(sc.Riders))
	for _, r := range sc.Riders {
		base := r.BasePrice
		if base == 0 {
			base = r.Price
		}
		riders = append(riders, domain.Rider{
			ID:            r.ID,
			Sport:         sc.Sport,
			Name:          r.Name,
			TeamName:      r.Team,
			ConstructorID: r.ConstructorID,
			BasePrice:     base,
			Price:         r.Price,
			InitialPrice:  r.Price,
		})
	}
	return constructors, riders
}
