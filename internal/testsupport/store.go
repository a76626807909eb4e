package testsupport

import (
	"testing"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/store"
)

// MustOpenStore opens the durable job store for the test config and closes it
// during cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// NewRepository builds a dual-tier repository backed by a temp database and a
// 24h ephemeral TTL.
func NewRepository(t testing.TB, cfg *config.Config) *store.Repository {
	t.Helper()
	durable := MustOpenStore(t, cfg)
	mem := store.NewMemStore(24 * time.Hour)
	return store.NewRepository(mem, durable, logging.NewNop())
}
