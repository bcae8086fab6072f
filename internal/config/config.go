package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Provider ProviderConfig `toml:"provider"`
	Agent    AgentConfig    `toml:"agent"`
	Observer ObserverConfig `toml:"observer"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "postgres"
	Path   string `toml:"path"`   // sqlite file path
	DSN    string `toml:"dsn"`    // postgres connection string
}

type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

type AgentConfig struct {
	WorkDir       string `toml:"work_dir"`
	MaxIterations int    `toml:"max_iterations"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	wd, _ := os.Getwd()
	if wd == "" {
		wd = "."
	}
	return Config{
		Server:   ServerConfig{Addr: ":8000"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "scout.db"},
		Provider: ProviderConfig{
			BaseURL: "https://models.inference.ai.azure.com",
			Model:   "gpt-4o",
		},
		Agent: AgentConfig{WorkDir: wd, MaxIterations: 25},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "scout.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("SCOUT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SCOUT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SCOUT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SCOUT_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SCOUT_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SCOUT_PROVIDER_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("SCOUT_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("SCOUT_WORK_DIR"); v != "" {
		cfg.Agent.WorkDir = v
	}
	if v := os.Getenv("SCOUT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxIterations = n
		}
	}
	if os.Getenv("SCOUT_OBSERVER_ENABLED") == "true" || os.Getenv("SCOUT_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
