package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "scout.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Provider.BaseURL != "https://models.inference.ai.azure.com" {
		t.Errorf("base url = %q", cfg.Provider.BaseURL)
	}
	if cfg.Agent.MaxIterations != 25 {
		t.Errorf("max iterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Observer.Enabled {
		t.Error("observer should default off")
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.toml")
	data := `
[server]
addr = ":9090"

[database]
driver = "postgres"
dsn = "postgres://localhost/scout"

[provider]
model = "gpt-4o-mini"

[agent]
work_dir = "/srv/project"
max_iterations = 10

[observer]
enabled = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/scout" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Agent.WorkDir != "/srv/project" || cfg.Agent.MaxIterations != 10 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if !cfg.Observer.Enabled {
		t.Error("observer not enabled")
	}
	// Unset keys keep their defaults.
	if cfg.Provider.BaseURL != "https://models.inference.ai.azure.com" {
		t.Errorf("base url = %q", cfg.Provider.BaseURL)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.toml")
	if err := os.WriteFile(path, []byte("[server]\naddr = \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SCOUT_ADDR", ":7070")
	t.Setenv("SCOUT_PROVIDER_API_KEY", "sekrit")
	t.Setenv("SCOUT_MAX_ITERATIONS", "5")
	t.Setenv("SCOUT_OBSERVER_ENABLED", "1")

	cfg := Load(path)
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q, want env to win", cfg.Server.Addr)
	}
	if cfg.Provider.APIKey != "sekrit" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("max iterations = %d", cfg.Agent.MaxIterations)
	}
	if !cfg.Observer.Enabled {
		t.Error("observer not enabled via env")
	}
}

func TestEnvMaxIterationsInvalidIgnored(t *testing.T) {
	t.Setenv("SCOUT_MAX_ITERATIONS", "not-a-number")
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Agent.MaxIterations != 25 {
		t.Errorf("max iterations = %d, want default kept", cfg.Agent.MaxIterations)
	}
}
