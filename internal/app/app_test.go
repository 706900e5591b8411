package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/store"
)

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{config.StorageJSON, config.StorageSQLite} {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()
		cfg.StorageDriver = driver
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "test.db")

		st, err := OpenStore(&cfg)
		if err != nil {
			t.Fatalf("%s: OpenStore: %v", driver, err)
		}
		ban := store.Ban{ParticipantID: "u1", DisplayName: "alice", Reason: "spam", Timestamp: 42}
		if err := st.SaveBans(ctx, []store.Ban{ban}); err != nil {
			t.Fatalf("%s: SaveBans: %v", driver, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("%s: Close: %v", driver, err)
		}

		reopened, err := OpenStore(&cfg)
		if err != nil {
			t.Fatalf("%s: reopen: %v", driver, err)
		}
		bans, err := reopened.LoadBans(ctx)
		if err != nil {
			t.Fatalf("%s: LoadBans: %v", driver, err)
		}
		if len(bans) != 1 || bans[0] != ban {
			t.Fatalf("%s: unexpected bans after reopen: %+v", driver, bans)
		}
		_ = reopened.Close()
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.StorageDriver = "postgres"

	if _, err := OpenStore(&cfg); !errors.Is(err, store.ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.HistoryLimit = 0
	logger := zerolog.Nop()

	if _, err := New(context.Background(), &cfg, &logger); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}
