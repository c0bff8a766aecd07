package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %s", cfg.Server.Address())
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DSN() != "./data/drinkpoint.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Leaderboard.Size != 50 || cfg.RateLimit.Burst != 5 {
		t.Errorf("unexpected defaults %+v %+v", cfg.Leaderboard, cfg.RateLimit)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.TrustProxy {
		t.Error("forwarded headers must not be trusted by default")
	}
	if loc, err := cfg.Rules.Location(); err != nil || loc.String() != "Asia/Tokyo" {
		t.Errorf("location = %v %v", loc, err)
	}
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s")
	t.Setenv("CLASSIFIER_TARGET_BRANDS", "Golden Hop,Citrus Crown")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Classifier.TargetBrands) != 2 || cfg.Classifier.TargetBrands[1] != "Citrus Crown" {
		t.Fatalf("brands = %v", cfg.Classifier.TargetBrands)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("DB_TYPE", "mongodb")
	t.Setenv("STORAGE_TYPE", "oss")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"AUTH_JWT_SECRET", "DB_TYPE", "OSS_BUCKET", "CLASSIFIER_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		cfg  DatabaseConfig
		want string
	}{
		{DatabaseConfig{Type: "mysql", User: "u", Password: "p", Host: "db", Name: "dp"}, "u:p@tcp(db:3306)/dp?charset=utf8mb4"},
		{DatabaseConfig{Type: "postgres", User: "u", Password: "p@ss", Host: "db", Port: 6543, Name: "dp", SSLMode: "require"}, "postgres://u:p%40ss@db:6543/dp?sslmode=require"},
		{DatabaseConfig{Type: "sqlite", Path: ":memory:"}, ":memory:"},
	}
	for _, tt := range tests {
		if got := tt.cfg.DSN(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.cfg.Type, got, tt.want)
		}
	}
}
