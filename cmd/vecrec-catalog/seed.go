package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
)

// seedFile is the products YAML accepted by `load`.
type seedFile struct {
	Products []seedProduct `yaml:"products" validate:"required,min=1,dive"`
}

type seedProduct struct {
	ID          int64     `yaml:"id" validate:"gt=0"`
	Name        string    `yaml:"name" validate:"required,max=512"`
	Description string    `yaml:"description"`
	Category    string    `yaml:"category" validate:"excludesall=0x7C"`
	Brand       string    `yaml:"brand"`
	Price       float64   `yaml:"price" validate:"gte=0"`
	Image       string    `yaml:"image"`
	Stock       int       `yaml:"stock" validate:"gte=0"`
	Rating      float64   `yaml:"rating" validate:"gte=0,lte=5"`
	NumReviews  int       `yaml:"num_reviews" validate:"gte=0"`
	CreatedAt   time.Time `yaml:"created_at"`
}

var seedValidator = validator.New(validator.WithRequiredStructEnabled())

// readSeed decodes and validates a seed file. Duplicate ids are rejected.
func readSeed(r io.Reader) ([]product.Product, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := seedValidator.Struct(f); err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}

	seen := make(map[int64]struct{}, len(f.Products))
	out := make([]product.Product, 0, len(f.Products))
	for i, sp := range f.Products {
		if _, dup := seen[sp.ID]; dup {
			return nil, fmt.Errorf("products[%d]: duplicate id %d", i, sp.ID)
		}
		seen[sp.ID] = struct{}{}

		p, err := product.New(product.Fields{
			ID:          sp.ID,
			Name:        sp.Name,
			Description: sp.Description,
			Category:    sp.Category,
			Brand:       sp.Brand,
			Price:       sp.Price,
			Image:       sp.Image,
			Stock:       sp.Stock,
			Rating:      sp.Rating,
			NumReviews:  sp.NumReviews,
			CreatedAt:   sp.CreatedAt.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}
