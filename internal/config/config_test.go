package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DocstoreBackend != "badger" {
		t.Errorf("DocstoreBackend = %q, want badger", cfg.DocstoreBackend)
	}
	if cfg.PublicListLimit != 50 {
		t.Errorf("PublicListLimit = %d, want 50", cfg.PublicListLimit)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Load succeeded without JWT_SECRET")
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DOCSTORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Load succeeded for postgres backend without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/sensei")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DocstoreBackend != "postgres" {
		t.Errorf("DocstoreBackend = %q, want postgres", cfg.DocstoreBackend)
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DOCSTORE_BACKEND", "dynamo")

	if _, err := Load(); err == nil {
		t.Error("Load accepted an unknown backend")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PUBLIC_LIST_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PublicListLimit != 50 {
		t.Errorf("malformed int should fall back to default, got %d", cfg.PublicListLimit)
	}
}
