package cache

import (
	"os"
	"testing"
	"time"
)

type entry struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func TestKey(t *testing.T) {
	tests := []struct {
		name       string
		a, b       [2]string
		wantEquals bool
	}{
		{"same", [2]string{"x", "y"}, [2]string{"x", "y"}, true},
		{"shifted boundary", [2]string{"ab", "c"}, [2]string{"a", "bc"}, false},
		{"swapped", [2]string{"x", "y"}, [2]string{"y", "x"}, false},
		{"empty", [2]string{"", ""}, [2]string{"", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := Key(tt.a[0], tt.a[1]), Key(tt.b[0], tt.b[1])
			if (ka == kb) != tt.wantEquals {
				t.Errorf("Key(%q) == Key(%q) is %v, want %v", tt.a, tt.b, ka == kb, tt.wantEquals)
			}
			if len(ka) != 64 {
				t.Errorf("len(Key) = %d, want 64", len(ka))
			}
		})
	}
}

func TestMemory(t *testing.T) {
	ctx := t.Context()
	m, err := NewMemory[entry](2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(ctx, "a"); ok {
		t.Error("Get on empty cache hit")
	}
	m.Set(ctx, "a", entry{Success: true})
	m.Set(ctx, "b", entry{Error: "boom"})
	if got, ok := m.Get(ctx, "a"); !ok || !got.Success {
		t.Errorf("Get(a) = %v, %v", got, ok)
	}
	// "b" is now least recently used.
	m.Set(ctx, "c", entry{})
	if _, ok := m.Get(ctx, "b"); ok {
		t.Error("Get(b) hit after eviction")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if _, err := NewMemory[entry](0); err == nil {
		t.Error("NewMemory(0) succeeded, want error")
	}
}

func TestNop(t *testing.T) {
	var c Cache[entry] = Nop[entry]{}
	c.Set(t.Context(), "a", entry{Success: true})
	if _, ok := c.Get(t.Context(), "a"); ok {
		t.Error("Nop.Get hit")
	}
}

func TestRedis(t *testing.T) {
	url := os.Getenv("MARKDB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MARKDB_TEST_REDIS_URL not set")
	}
	ctx := t.Context()
	r, err := NewRedis[entry](ctx, url, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	key := Key(t.Name(), time.Now().String())
	if _, ok := r.Get(ctx, key); ok {
		t.Error("Get of fresh key hit")
	}
	r.Set(ctx, key, entry{Error: "mismatch"})
	got, ok := r.Get(ctx, key)
	if !ok || got.Error != "mismatch" {
		t.Errorf("Get() = %v, %v", got, ok)
	}
}
