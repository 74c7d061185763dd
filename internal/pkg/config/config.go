package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// VisitorSecret signs the visitor cookie.
	VisitorSecret string `env:"VISITOR_SECRET, required"`

	Upstream UpstreamConfig
	Session  SessionConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type UpstreamConfig struct {
	BaseURL string        `env:"UPSTREAM_BASE_URL, default=http://localhost:8080/_dev/upstream"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT,  default=10s"`
	// Dev mounts the in-process fake credential API under /_dev/upstream.
	Dev     bool `env:"DEV_UPSTREAM, default=false"`
	DevSeed DevSeedConfig
}

// DevSeedConfig seeds the dev credential API.
type DevSeedConfig struct {
	DeveloperInvite    string `env:"DEV_INVITE_DEVELOPER"`
	AdminInvite        string `env:"DEV_INVITE_ADMIN"`
	SuperAdminInvite   string `env:"DEV_INVITE_SUPER_ADMIN"`
	SuperAdminEmail    string `env:"DEV_SUPER_ADMIN_EMAIL"`
	SuperAdminPassword string `env:"DEV_SUPER_ADMIN_PASSWORD"`
}

type SessionConfig struct {
	// LoadWait bounds how long a guarded request waits for the persisted
	// session before the loading placeholder is served.
	LoadWait         time.Duration `env:"SESSION_LOAD_WAIT,  default=2s"`
	PendingMarkerTTL time.Duration `env:"PENDING_MARKER_TTL, default=168h"`
	VisitorIdleTTL   time.Duration `env:"VISITOR_IDLE_TTL,   default=30m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=portal"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"UPSTREAM_TIMEOUT", c.Upstream.Timeout},
		{"PENDING_MARKER_TTL", c.Session.PendingMarkerTTL},
		{"VISITOR_IDLE_TTL", c.Session.VisitorIdleTTL},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", p.name, p.d)
		}
	}
	if c.Session.LoadWait < 0 {
		return fmt.Errorf("config: SESSION_LOAD_WAIT must not be negative, got %s", c.Session.LoadWait)
	}
	return nil
}
