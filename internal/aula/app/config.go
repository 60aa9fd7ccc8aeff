package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/ilyakaznacheev/cleanenv"
)

// MasterKeyEnv holds key material for the sealed token store when no key
// file is configured.
const MasterKeyEnv = "AULA_MASTER_KEY"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

type Config struct {
	BaseURL      string `yaml:"base_url" env:"AULA_BASE_URL" env-default:"http://localhost:8080"`
	WebsocketURL string `yaml:"ws_url" env:"AULA_WS_URL"` // Optional: derived from BaseURL when empty

	Store StoreConfig `yaml:"store"`

	RequestTimeout    time.Duration   `yaml:"request_timeout" env:"AULA_REQUEST_TIMEOUT" env-default:"30s"`
	RefreshTimeout    time.Duration   `yaml:"refresh_timeout" env:"AULA_REFRESH_TIMEOUT" env-default:"10s"`
	NotificationLimit int             `yaml:"notification_limit" env:"AULA_NOTIFICATION_LIMIT" env-default:"20"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`

	Env       string `yaml:"env" env:"ENV" env-default:"prod"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"warn"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver" env:"AULA_STORE" env-default:"sqlite"` // memory, sqlite or bolt
	Path    string `yaml:"path" env:"AULA_STORE_PATH"`                   // Optional: defaults under the user config dir
	KeyFile string `yaml:"key_file" env:"AULA_KEY_FILE"`                 // Optional: seals stored tokens when set
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"AULA_RATE_LIMIT_REQUESTS" env-default:"600"`
	Window   time.Duration `yaml:"window" env:"AULA_RATE_LIMIT_WINDOW" env-default:"1m"`
	Burst    int           `yaml:"burst" env:"AULA_RATE_LIMIT_BURST" env-default:"50"`
}

func (c RateLimitConfig) transport() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: c.Requests,
		Window:            c.Window,
		Burst:             c.Burst,
	}
}

// LoadConfig reads the YAML file at path, when given, then applies the
// environment on top.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StoreBolt:
	default:
		return fmt.Errorf("unknown store driver %q (want memory, sqlite or bolt)", c.Store.Driver)
	}

	if c.Store.Path == "" && c.Store.Driver != StoreMemory {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		name := "session.db"
		if c.Store.Driver == StoreBolt {
			name = "session.bolt"
		}
		c.Store.Path = filepath.Join(dir, "aula", name)
	}

	if c.NotificationLimit <= 0 {
		c.NotificationLimit = aulasdk.DefaultNotificationLimit
	}
	return nil
}

// Sealed reports whether stored tokens are encrypted at rest.
func (c StoreConfig) Sealed() bool {
	return c.KeyFile != "" || os.Getenv(MasterKeyEnv) != ""
}
