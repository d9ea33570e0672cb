package backend

import (
	"context"
	"path/filepath"
	"testing"

	"carcost/internal/config"
	"carcost/internal/core"
	"carcost/internal/notify"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    Kind
		wantErr bool
	}{
		{"nil config", nil, "", true},
		{"sqlite", &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, SQLite, false},
		{"sqlite without path", &config.Config{DataBackend: "sqlite"}, SQLite, true},
		{"memory", &config.Config{DataBackend: "memory"}, Memory, false},
		{"unknown backend", &config.Config{DataBackend: "postgres"}, "postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Kind != tt.want {
				t.Errorf("FromAppConfig() Kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Errorf("%q.Valid() = false, want true", k)
		}
	}
	if Kind("csv").Valid() {
		t.Error(`"csv".Valid() = true, want false`)
	}
}

func TestFactory_Open(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{Kind: Memory, SeedDir: t.TempDir()}},
		{"sqlite", Config{Kind: SQLite, SQLitePath: filepath.Join(t.TempDir(), "carcost.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			hub := notify.NewHub()
			var changed []string
			cancel := hub.Listen(func(tables []string) { changed = append(changed, tables...) })
			defer cancel()

			b, err := NewFactory(nil).Open(ctx, tt.config, hub)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer b.Close()

			types, err := b.Store.ListFuelTypes(ctx)
			if err != nil {
				t.Fatalf("ListFuelTypes() error = %v", err)
			}
			if len(types) != 4 {
				t.Errorf("ListFuelTypes() returned %d types, want 4", len(types))
			}

			carID, err := b.Store.CreateCar(ctx, core.Car{Name: "Panda", InitialMileage: 1000})
			if err != nil {
				t.Fatalf("CreateCar() error = %v", err)
			}
			if _, err := b.Store.GetCar(ctx, carID); err != nil {
				t.Errorf("GetCar() error = %v", err)
			}
			if len(changed) != 1 || changed[0] != notify.TableCars {
				t.Errorf("published tables = %v, want [%s]", changed, notify.TableCars)
			}
		})
	}
}

func TestFactory_OpenRejectsUnknownKind(t *testing.T) {
	if _, err := NewFactory(nil).Open(context.Background(), Config{Kind: "postgres"}, nil); err == nil {
		t.Error("Open() should reject an unknown backend")
	}
}
