package storage

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var _ port.ProductsLoader = (*SeedRepository)(nil)

//go:embed seed/products.yaml
var defaultSeed []byte

var ErrInvalidSeed = errors.New("invalid seed")

type (
	seedFile struct {
		Products []seedProduct `yaml:"products"`
	}

	seedProduct struct {
		ID       int64   `yaml:"id"`
		Name     string  `yaml:"name"`
		Category string  `yaml:"category"`
		Price    string  `yaml:"price"`
		Rating   float64 `yaml:"rating"`
		Image    string  `yaml:"image"`
	}
)

// A SeedRepository serves a static product list from YAML.
type SeedRepository struct {
	data []byte
}

// NewSeedRepository reads the seed from path, or uses the built-in
// catalog when path is empty.
func NewSeedRepository(path string) (SeedRepository, error) {
	const op = "NewSeedRepository"

	if path == "" {
		return SeedRepository{defaultSeed}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SeedRepository{}, fmt.Errorf("%s: %w", op, err)
	}
	return SeedRepository{data}, nil
}

func (r SeedRepository) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "SeedRepository.LoadProducts"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(r.data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSeed, err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	for i, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w: product #%d price %q: %w",
				op, ErrInvalidSeed, i, p.Price, err,
			)
		}
		products = append(products, domain.Product{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Price:    price,
			Rating:   p.Rating,
			Image:    p.Image,
		})
	}
	return products, nil
}
