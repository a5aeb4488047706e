package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maruel/markdb/internal/config"
	"github.com/maruel/markdb/internal/mdv"
)

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "plain",
			content: "# comment\nADMIN_PASSWORD=hunter2\n\nexport HTTP=:8080\nbogus\n",
			want:    map[string]string{"ADMIN_PASSWORD": "hunter2", "HTTP": ":8080"},
		},
		{
			name:    "double quoted",
			content: `REDIS_URL="redis://localhost:6379/0"`,
			want:    map[string]string{"REDIS_URL": "redis://localhost:6379/0"},
		},
		{
			name:    "single quoted",
			content: "ADMIN_PASSWORD='x'",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			content: "ADMIN_PASSWORD='x",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			got, err := loadDotEnv(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadDotEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Errorf("loadDotEnv() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
	t.Run("missing", func(t *testing.T) {
		got, err := loadDotEnv(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("loadDotEnv() = %v, want empty", got)
		}
	})
}

func TestOpenApp(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	cfg.MDV.Path = filepath.Join(dir, "no-such-mdv")
	cfg.History.Enabled = true
	a, err := openApp(t.Context(), cfg, dir, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if got := a.svc.Store.Driver(); got != config.DriverJSONL {
		t.Errorf("Driver() = %q, want %q", got, config.DriverJSONL)
	}
	if a.svc.History == nil {
		t.Error("History is nil")
	}
	if len(a.svc.Tokens.Secret) != 32 {
		t.Errorf("len(Secret) = %d, want 32", len(a.svc.Tokens.Secret))
	}
	if err := a.handlerCfg.MDVCheck(); err == nil {
		t.Error("MDVCheck() succeeded for a missing binary")
	}
	if a.limiters.Login == nil || a.limiters.Validate == nil {
		t.Error("rate limiters are not set")
	}
}

func TestOpenCache(t *testing.T) {
	for _, d := range []string{config.CacheMemory, config.CacheNone} {
		t.Run(d, func(t *testing.T) {
			c, err := openCache(t.Context(), config.Cache{Driver: d, Size: 8})
			if err != nil {
				t.Fatal(err)
			}
			c.Set(t.Context(), "k", mdv.Result{Success: true})
			_, ok := c.Get(t.Context(), "k")
			if want := d == config.CacheMemory; ok != want {
				t.Errorf("Get() ok = %v, want %v", ok, want)
			}
		})
	}
	if _, err := openCache(t.Context(), config.Cache{Driver: "nope"}); err == nil {
		t.Error("openCache(nope) succeeded")
	}
}
