package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Catalog supplies the instruments created at startup.
type Catalog interface {
	LoadInstruments(ctx context.Context) ([]domain.Listing, error)
}

// DefaultListings is the built-in catalog. Volumes start at zero because
// the volume effect of the price model grows with cumulative volume.
func DefaultListings() []domain.Listing {
	return []domain.Listing{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: 190.50},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 405.75},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Price: 160.20},
		{Symbol: "AMZN", Name: "Amazon.com, Inc.", Price: 178.30},
		{Symbol: "NVDA", Name: "NVIDIA Corporation", Price: 950.80},
		{Symbol: "TSLA", Name: "Tesla, Inc.", Price: 175.40},
		{Symbol: "META", Name: "Meta Platforms, Inc.", Price: 485.60},
		{Symbol: "AMD", Name: "Advanced Micro Devices, Inc.", Price: 172.30},
		{Symbol: "INTC", Name: "Intel Corporation", Price: 30.15},
		{Symbol: "NFLX", Name: "Netflix, Inc.", Price: 625.80},
	}
}

// DefaultCatalog serves DefaultListings.
type DefaultCatalog struct{}

func (DefaultCatalog) LoadInstruments(context.Context) ([]domain.Listing, error) {
	return DefaultListings(), nil
}

// catalogFile is the on-disk layout of a YAML catalog.
type catalogFile struct {
	Instruments []domain.Listing `yaml:"instruments"`
}

// YAMLCatalog reads listings from a YAML file. A missing file yields an
// empty catalog.
type YAMLCatalog struct {
	Path string
}

func (c YAMLCatalog) LoadInstruments(context.Context) ([]domain.Listing, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", c.Path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", c.Path, err)
	}
	for _, l := range f.Instruments {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", c.Path, err)
		}
	}
	return f.Instruments, nil
}

// WriteYAMLCatalog writes listings to path in the format YAMLCatalog reads.
func WriteYAMLCatalog(path string, listings []domain.Listing) error {
	data, err := yaml.Marshal(catalogFile{Instruments: listings})
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	return nil
}

// LoadListings returns the first non-empty result among catalogs. Failing
// catalogs are logged and skipped. When every catalog is empty the
// built-in listings are returned and fromDefault is true.
func LoadListings(ctx context.Context, logger *slog.Logger, catalogs ...Catalog) (listings []domain.Listing, fromDefault bool) {
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		ls, err := c.LoadInstruments(ctx)
		if err != nil {
			logger.Warn("catalog load failed", slog.String("catalog", fmt.Sprintf("%T", c)), slog.String("error", err.Error()))
			continue
		}
		if len(ls) > 0 {
			return ls, false
		}
	}
	logger.Info("no instruments found, using built-in catalog")
	return DefaultListings(), true
}
