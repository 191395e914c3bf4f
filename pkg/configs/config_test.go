package configs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	return dir
}

func TestDefaults(t *testing.T) {
	if err := InitConfig(""); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	cfg := GetConfig()

	if cfg.Store.Type != StoreMemory {
		t.Errorf("expected memory store, got %s", cfg.Store.Type)
	}

	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay != 100*time.Millisecond {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}

	if cfg.Events.Type != EventsNone {
		t.Errorf("expected events disabled, got %s", cfg.Events.Type)
	}

	if cfg.S3.PresignExpiry != time.Hour {
		t.Errorf("expected 1h presign expiry, got %s", cfg.S3.PresignExpiry)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := writeConfig(t, "config.yaml", `
server:
  port: 9090
  reload_config: false
store:
  type: sql
  users_table: people
rate_limit:
  key: header:X-Api-Key
`)

	if err := InitConfig(dir); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	cfg := GetConfig()

	if cfg.Server.Port != 9090 || cfg.Store.Type != StoreSQL || cfg.Store.UsersTable != "people" {
		t.Errorf("config file not applied: %+v", cfg.Store)
	}

	if !strings.HasSuffix(GetViper().ConfigFileUsed(), "config.yaml") {
		t.Errorf("unexpected config file %q", GetViper().ConfigFileUsed())
	}
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("USERS_TABLE_NAME", "legacy-users")
	t.Setenv("ASSETS_BUCKET_NAME", "legacy-bucket")

	if err := InitConfig(""); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	cfg := GetConfig()

	if cfg.Store.UsersTable != "legacy-users" {
		t.Errorf("expected legacy-users, got %q", cfg.Store.UsersTable)
	}

	if cfg.S3.AssetsBucket != "legacy-bucket" {
		t.Errorf("expected legacy-bucket, got %q", cfg.S3.AssetsBucket)
	}
}

func TestInvalidConfig(t *testing.T) {
	dir := writeConfig(t, "config.yaml", `
store:
  type: cassandra
rate_limit:
  key: cookie
circuit_breaker:
  failure_rate: 2
`)

	err := InitConfig(dir)
	if err == nil {
		t.Fatal("expected validation error")
	}

	for _, want := range []string{"store.type: oneof", "rate_limit.key: ratelimit_key", "circuit_breaker.failure_rate: lte=1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}
