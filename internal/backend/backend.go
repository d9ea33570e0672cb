// Package backend opens the record store selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"

	"carcost/internal/config"
	"carcost/internal/store"
)

// Kind names a record store implementation.
type Kind string

const (
	SQLite Kind = "sqlite"
	Memory Kind = "memory"
)

// DefaultSeedDir is where the memory store looks for seed_fuel_types.txt.
const DefaultSeedDir = "data"

// Kinds lists the supported stores.
func Kinds() []Kind {
	return []Kind{SQLite, Memory}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Config selects and locates a record store.
type Config struct {
	Kind       Kind
	SQLitePath string
	SeedDir    string
}

// FromAppConfig picks the store settings out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("backend: no configuration")
	}
	c := Config{
		Kind:       Kind(cfg.DataBackend),
		SQLitePath: cfg.SQLiteDBPath,
		SeedDir:    cfg.SeedDir,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Kind {
	case SQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("backend sqlite: database path is required")
		}
	case Memory:
	default:
		return fmt.Errorf("backend %q: must be one of %v", c.Kind, Kinds())
	}
	return nil
}

// Backend is an open record store. Close releases it; it is never nil.
type Backend struct {
	Store store.Store
	Close func() error
}

// Opener opens record stores. Every write to an opened store is announced
// to pub.
type Opener interface {
	Open(ctx context.Context, c Config, pub store.Publisher) (*Backend, error)
}
