package journal

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
	"github.com/nerrad567/plcbridge/internal/infrastructure/database"
	_ "github.com/nerrad567/plcbridge/migrations"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:    filepath.Join(t.TempDir(), "journal.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewStore(db)
}

func TestSaveAndLoad(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "R0", 1); err != nil {
		t.Fatalf("Save(R0) error = %v", err)
	}
	if err := store.Save(ctx, "D12", 1); err != nil {
		t.Fatalf("Save(D12) error = %v", err)
	}
	if err := store.Save(ctx, "R0", 0); err != nil {
		t.Fatalf("Save(R0) overwrite error = %v", err)
	}

	states, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("Load() returned %d entries, want 2", len(states))
	}
	if states["R0"] != 0 {
		t.Errorf("R0 = %d, want 0", states["R0"])
	}
	if states["D12"] != 1 {
		t.Errorf("D12 = %d, want 1", states["D12"])
	}
}

func TestLoad_Empty(t *testing.T) {
	store := openStore(t)

	states, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(states) != 0 {
		t.Errorf("Load() on empty journal = %v, want empty", states)
	}
}

func TestSave_EmptyChannel(t *testing.T) {
	store := openStore(t)

	if err := store.Save(context.Background(), "", 1); !errors.Is(err, ErrEmptyChannel) {
		t.Errorf("Save(\"\") error = %v, want ErrEmptyChannel", err)
	}
}

func TestUpdatedAt(t *testing.T) {
	store := openStore(t)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := store.Save(ctx, "R4", 1); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.UpdatedAt(ctx, "R4")
	if err != nil {
		t.Fatalf("UpdatedAt() error = %v", err)
	}
	if !got.Equal(fixed) {
		t.Errorf("UpdatedAt() = %v, want %v", got, fixed)
	}

	if _, err := store.UpdatedAt(ctx, "R5"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdatedAt(unknown) error = %v, want sql.ErrNoRows", err)
	}
}
