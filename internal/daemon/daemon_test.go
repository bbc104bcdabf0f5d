package daemon

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/api"
	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/config"
	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/lock"
	"github.com/amasampo/mesh/internal/store"
)

func TestServerLifecycle(t *testing.T) {
	tmpDir := t.TempDir()

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	b := bus.New()
	db, err := store.Open(filepath.Join(tmpDir, "amasampo.db"), b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	logger := zap.NewNop()
	svc := ledger.NewService(db, b, logger, ledger.DefaultPolicy())
	router := api.NewRouter(api.Deps{
		DB:        db,
		Ledger:    svc,
		Logger:    logger,
		JWTSecret: "daemon-test-secret",
	})

	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	srv, err := NewServer(Params{Config: cfg}, router, logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("Start() error = %v", err)
		}
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Stop(ctx)
}
