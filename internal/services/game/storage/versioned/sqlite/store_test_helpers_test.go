package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned/codec"
)

type counterValue struct {
	Count int    `json:"count"`
	Note  string `json:"note,omitempty"`
}

type journalValue struct {
	Entries int `json:"entries"`
}

type token interface {
	Tag() string
}

type coinToken struct {
	Amount int `json:"amount"`
}

func (coinToken) Tag() string { return "coin" }

type gemToken struct {
	Color string `json:"color"`
}

func (gemToken) Tag() string { return "gem" }

func testSchemas(t *testing.T) *codec.Registry {
	t.Helper()
	reg := codec.NewRegistry()
	if err := codec.Register(reg, "counter", func() counterValue { return counterValue{} }); err != nil {
		t.Fatalf("register counter: %v", err)
	}
	if err := codec.Register(reg, "journal", func() journalValue { return journalValue{} }); err != nil {
		t.Fatalf("register journal: %v", err)
	}
	err := codec.RegisterPolymorphic(reg, "token", func() token { return coinToken{} }, codec.Variants[token]{
		Field: "kind",
		Decoders: map[string]codec.Decoder[token]{
			"coin": codec.Variant[token, coinToken](),
			"gem":  codec.Variant[token, gemToken](),
		},
	})
	if err != nil {
		t.Fatalf("register token: %v", err)
	}
	return reg
}

func openTestStore(t *testing.T, configure ...func(*Config)) *Store {
	t.Helper()
	cfg := Config{Path: filepath.Join(t.TempDir(), "objects.sqlite")}
	for _, fn := range configure {
		fn(&cfg)
	}
	return openTestStoreAt(t, cfg)
}

func openTestStoreAt(t *testing.T, cfg Config, opts ...Option) *Store {
	t.Helper()
	store, err := Open(context.Background(), cfg, testSchemas(t), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func shortTimeouts(cfg *Config) {
	cfg.BusyTimeout = 100 * time.Millisecond
	cfg.AcquireTimeout = 100 * time.Millisecond
}

func countRows(t *testing.T, store *Store) int {
	t.Helper()
	var count int
	if err := store.sqlDB.QueryRow("SELECT COUNT(*) FROM objects").Scan(&count); err != nil {
		t.Fatalf("count objects: %v", err)
	}
	return count
}

func execute(t *testing.T, store *Store, q *versioned.Query) *versioned.Results {
	t.Helper()
	res, err := store.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return res
}

func readCounter(t *testing.T, store *Store, id string) (counterValue, int64) {
	t.Helper()
	res := execute(t, store, versioned.NewReadQuery().Get("counter", id))
	value, version, err := versioned.Read[counterValue](res, "counter", id)
	if err != nil {
		t.Fatalf("read counter %s: %v", id, err)
	}
	return value, version
}
