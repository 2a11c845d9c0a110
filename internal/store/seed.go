package store

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
)

//go:embed seeddata/default.yaml
var defaultSeed []byte

// SeedData is the restaurant data loaded by the seed command.
type SeedData struct {
	Menu      []catalog.MenuItem `yaml:"menu"`
	Districts []catalog.District `yaml:"districts"`
	Promos    []domain.Promo     `yaml:"promos"`
}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Items     int `json:"items"`
	Districts int `json:"districts"`
	Promos    int `json:"promos"`
}

// DefaultSeed returns the bundled restaurant data.
func DefaultSeed() (*SeedData, error) {
	return parseSeed(defaultSeed)
}

// LoadSeedFile reads restaurant data from a YAML file.
func LoadSeedFile(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) (*SeedData, error) {
	var sd SeedData
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}
	return &sd, nil
}

// Seed upserts every record in sd.
func (c *CatalogStore) Seed(ctx context.Context, sd *SeedData) (SeedResult, error) {
	var res SeedResult
	for _, m := range sd.Menu {
		if err := c.UpsertItem(ctx, m); err != nil {
			return res, err
		}
		res.Items++
	}
	for _, d := range sd.Districts {
		if err := c.UpsertDistrict(ctx, d); err != nil {
			return res, err
		}
		res.Districts++
	}
	for _, p := range sd.Promos {
		if err := c.UpsertPromo(ctx, p); err != nil {
			return res, err
		}
		res.Promos++
	}
	c.db.log.Info().Int("items", res.Items).Int("districts", res.Districts).Int("promos", res.Promos).Msg("catalog seeded")
	return res, nil
}
