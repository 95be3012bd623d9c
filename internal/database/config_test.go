package database

import (
	"testing"

	"famledger/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(&config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "ledger", DBPassword: "p@ss word", DBName: "famledger",
		DBSSLMode: "require", DBMaxOpenConns: 7, MigrationsPath: "/srv/migrations",
	})

	if cfg.MaxOpenConns != 7 || cfg.MigrationsPath != "/srv/migrations" {
		t.Errorf("unexpected config %+v", cfg)
	}

	wantDSN := "host=db port=5432 user=ledger password='p@ss word' dbname=famledger sslmode=require"
	if got := cfg.DSN(); got != wantDSN {
		t.Errorf("DSN() = %q, want %q", got, wantDSN)
	}

	wantURL := "postgres://ledger:p%40ss%20word@db:5432/famledger?sslmode=require"
	if got := cfg.URL(); got != wantURL {
		t.Errorf("URL() = %q, want %q", got, wantURL)
	}
}

func TestQuoteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"secret", "secret"},
		{"", "''"},
		{"it's", `'it\'s'`},
		{`a\b`, `'a\\b'`},
	}
	for _, tt := range tests {
		if got := quoteDSN(tt.in); got != tt.want {
			t.Errorf("quoteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
