package db

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/yeisme/assetvault/pkg/configs"
)

func TestAppendQuery(t *testing.T) {
	cases := map[string]string{
		"file:records.db":            "file:records.db?a=1",
		"file::memory:?cache=shared": "file::memory:?cache=shared&a=1",
	}

	for in, want := range cases {
		if got := appendQuery(in, "a=1"); got != want {
			t.Errorf("appendQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisteredTypesSorted(t *testing.T) {
	types := GetRegisteredDBTypes()

	if !slices.IsSorted(types) {
		t.Errorf("expected sorted types, got %v", types)
	}

	if !slices.Contains(types, configs.SQLite) {
		t.Errorf("sqlite dialect not registered: %v", types)
	}
}

func TestOpenSQLite(t *testing.T) {
	client, err := Open(context.Background(), &configs.DBConfig{
		Type:         configs.SQLite,
		Database:     filepath.Join(t.TempDir(), "open"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	var mode string
	if err := client.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("journal_mode: %v", err)
	}

	if mode != "wal" {
		t.Errorf("expected wal journal mode, got %q", mode)
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), &configs.DBConfig{Type: "oracle"}, Options{})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
