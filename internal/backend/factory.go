package backend

import (
	"context"
	"fmt"

	applog "carcost/internal/log"
	"carcost/internal/storage"
	"carcost/internal/store"
	"carcost/internal/store/memory"
)

// Factory is the Opener for the stores in Kinds.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend)}
}

func (f *Factory) Open(ctx context.Context, c Config, pub store.Publisher) (*Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		pub = store.NopPublisher{}
	}

	switch c.Kind {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(c.SQLitePath, pub)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Record store opened", "backend", c.Kind, "path", c.SQLitePath)
		return &Backend{Store: repo, Close: repo.Close}, nil

	default:
		dir := c.SeedDir
		if dir == "" {
			dir = DefaultSeedDir
		}
		s := memory.NewFromFiles(pub, dir)
		f.logger.InfoContext(ctx, "Record store opened", "backend", c.Kind, "seed_dir", dir)
		return &Backend{Store: s, Close: s.Close}, nil
	}
}
