package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/gamestate/internal/platform/config"
)

// Config configures the SQLite object store.
type Config struct {
	// Path is the database file location.
	Path string `env:"GAMESTATE_STORE_PATH,required"`
	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration `env:"GAMESTATE_STORE_BUSY_TIMEOUT" envDefault:"5s"`
	// AcquireTimeout bounds how long Execute waits for a pooled connection.
	AcquireTimeout time.Duration `env:"GAMESTATE_STORE_ACQUIRE_TIMEOUT" envDefault:"5s"`
	// MaxOpenConns caps the connection pool.
	MaxOpenConns int `env:"GAMESTATE_STORE_MAX_OPEN_CONNS" envDefault:"4"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout must not be negative")
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire timeout must be positive")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open conns must be positive")
	}
	return nil
}

// withDefaults fills zero fields with the envDefault values so callers that
// build Config by hand only need a path.
func (c Config) withDefaults() Config {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	return c
}

func (c Config) dsn() string {
	return c.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		fmt.Sprintf("&_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds())
}
