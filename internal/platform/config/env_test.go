package config

import "testing"

type envTestConfig struct {
	Token  string `env:"CONFIG_TEST_TOKEN" envDefault:"unset"`
	DBPath string `env:"CONFIG_TEST_DB_PATH" envDefault:"crew9bot.db"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Token != "unset" {
		t.Fatalf("expected default token, got %q", cfg.Token)
	}
	if cfg.DBPath != "crew9bot.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestParseEnvReadsEnvironment(t *testing.T) {
	t.Setenv("CONFIG_TEST_TOKEN", "123:abc")
	t.Setenv("CONFIG_TEST_DB_PATH", "/tmp/games.db")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Token != "123:abc" {
		t.Fatalf("expected env token, got %q", cfg.Token)
	}
	if cfg.DBPath != "/tmp/games.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
}
