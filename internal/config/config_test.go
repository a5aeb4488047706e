package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	cfg, err := Load(path, env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != DriverJSONL {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverJSONL)
	}
	if cfg.MDV.Timeout != 10*time.Second {
		t.Errorf("MDV.Timeout = %v, want 10s", cfg.MDV.Timeout)
	}
	if len(cfg.Auth.JWTSecret) != 64 {
		t.Errorf("len(JWTSecret) = %d, want 64", len(cfg.Auth.JWTSecret))
	}
	// The generated secret is persisted.
	again, err := Load(path, env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if again.Auth.JWTSecret != cfg.Auth.JWTSecret {
		t.Errorf("JWTSecret changed across loads: %q != %q", again.Auth.JWTSecret, cfg.Auth.JWTSecret)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := `
storage:
  driver: sqlite
  dsn: /tmp/markdb.db
mdv:
  path: /usr/local/bin/mdv
  timeout: 3s
  max_concurrent: 2
cache:
  driver: none
auth:
  jwt_secret: 0123456789abcdef0123456789abcdef
  token_ttl: 1h
history:
  enabled: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, env(map[string]string{"ADMIN_PASSWORD": "s3cret"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.DSN != "/tmp/markdb.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.MDV.Timeout != 3*time.Second || cfg.MDV.MaxConcurrent != 2 {
		t.Errorf("MDV = %+v", cfg.MDV)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 1h", cfg.Auth.TokenTTL)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if cfg.AdminPassword != "s3cret" {
		t.Errorf("AdminPassword = %q, want %q", cfg.AdminPassword, "s3cret")
	}
	// Defaults survive for omitted sections.
	if cfg.RateLimit.LoginPerMinute != 10 {
		t.Errorf("RateLimit.LoginPerMinute = %d, want 10", cfg.RateLimit.LoginPerMinute)
	}
	// The environment is not written back.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "s3cret") {
		t.Error("config file contains the environment password")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown field", "storage:\n  drvier: jsonl\n", "failed to parse"},
		{"bad yaml", "storage: [\n", "failed to parse"},
		{"unknown driver", "storage:\n  driver: postgres\n", "storage"},
		{"sqlite without dsn", "storage:\n  driver: sqlite\n", "DSN"},
		{"redis without url", "cache:\n  driver: redis\n", "RedisURL"},
		{"zero concurrency", "mdv:\n  max_concurrent: -1\n", "mdv"},
		{"short secret", "auth:\n  jwt_secret: short\n", "JWTSecret"},
		{"bad trusted proxy", "rate_limit:\n  trusted_proxies: [10.0.0.0/8, nope]\n", "TrustedProxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path, env(nil))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		env     map[string]string
		wantDSN string
		wantDB  string
	}{
		{
			name:    "mongo root url",
			driver:  DriverMongo,
			env:     map[string]string{"MONGO_ROOT_URL": "mongodb://db:27017", "APP_NAME": "app"},
			wantDSN: "mongodb://db:27017",
			wantDB:  "app",
		},
		{
			name:    "mongo credentials",
			driver:  DriverMongo,
			env:     map[string]string{"MONGO_ROOT_URL": "mongodb://db:27017", "MONGODB_USERNAME": "admin", "MONGODB_PASSWORD": "pw"},
			wantDSN: "mongodb://admin:pw@db:27017",
			wantDB:  "markdb",
		},
		{
			name:    "mongo url ignored for sql",
			driver:  DriverSQLite,
			env:     map[string]string{"MONGO_ROOT_URL": "mongodb://db:27017"},
			wantDSN: "",
			wantDB:  "markdb",
		},
		{
			name:    "explicit dsn wins",
			driver:  DriverMongo,
			env:     map[string]string{"MONGO_ROOT_URL": "mongodb://db:27017", "MARKDB_STORAGE_DSN": "mongodb://other"},
			wantDSN: "mongodb://other",
			wantDB:  "markdb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Driver = tt.driver
			cfg.ApplyEnv(env(tt.env))
			if cfg.Storage.DSN != tt.wantDSN {
				t.Errorf("DSN = %q, want %q", cfg.Storage.DSN, tt.wantDSN)
			}
			if cfg.Storage.Database != tt.wantDB {
				t.Errorf("Database = %q, want %q", cfg.Storage.Database, tt.wantDB)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.Auth.JWTSecret = strings.Repeat("a", 32)
	cfg.Cache.TTL = 90 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if got.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 1m30s", got.Cache.TTL)
	}
	if got.Auth.JWTSecret != cfg.Auth.JWTSecret {
		t.Errorf("JWTSecret = %q, want %q", got.Auth.JWTSecret, cfg.Auth.JWTSecret)
	}
}
