package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewConsoleHandler_DropsEmpty(t *testing.T) {
	t.Setenv("JOURNAL_STREAM", "")
	var buf bytes.Buffer
	l := slog.New(NewConsoleHandler(&buf, slog.LevelInfo, false))
	l.Info("hello", "empty", "", "zero", 0, "off", false, "d", time.Duration(0), "kept", "yes")
	out := buf.String()
	for _, k := range []string{"empty=", "zero=", "off=", "d="} {
		if strings.Contains(out, k) {
			t.Errorf("output %q contains %q", out, k)
		}
	}
	if !strings.Contains(out, "kept=yes") {
		t.Errorf("output %q is missing kept=yes", out)
	}
}

func TestNewConsoleHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	lv := &slog.LevelVar{}
	lv.Set(slog.LevelWarn)
	l := slog.New(NewConsoleHandler(&buf, lv, false))
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	lv.Set(slog.LevelDebug)
	l.Debug("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("debug not logged at debug level: %q", buf.String())
	}
}

func TestFanout(t *testing.T) {
	var text, js bytes.Buffer
	h := Fanout(
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&js, nil),
	)
	l := slog.New(h).With("req", "r1").WithGroup("g")
	l.Info("info only json", "k", "v")
	l.Warn("both", "k", "w")

	if strings.Contains(text.String(), "info only json") {
		t.Errorf("text handler got an info record: %q", text.String())
	}
	if !strings.Contains(text.String(), "both") {
		t.Errorf("text handler missed the warn record: %q", text.String())
	}
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("json lines = %d, want 2: %q", len(lines), js.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["req"] != "r1" {
		t.Errorf("req = %v, want r1", rec["req"])
	}
	g, _ := rec["g"].(map[string]any)
	if g["k"] != "w" {
		t.Errorf("g.k = %v, want w", g["k"])
	}
	if !h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("Enabled(info) = false, want true")
	}
	if h.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true, want false")
	}
}
