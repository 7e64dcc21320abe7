package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultReviewConfig(t *testing.T) {
	cfg := DefaultReviewConfig()

	if cfg.Backend == nil || *cfg.Backend != BackendSQLite {
		t.Errorf("Expected Backend sqlite, got %v", cfg.Backend)
	}
	if cfg.FlushInterval == nil || *cfg.FlushInterval != "30s" {
		t.Errorf("Expected FlushInterval '30s', got %v", cfg.FlushInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	if cfg.GetFlushInterval() != 30*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 30s", cfg.GetFlushInterval())
	}
	if cfg.GetSlotName() != "annotations" {
		t.Errorf("GetSlotName() = %q, want annotations", cfg.GetSlotName())
	}
	if cfg.GetWindowDays() != 30 {
		t.Errorf("GetWindowDays() = %f, want 30", cfg.GetWindowDays())
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := &ReviewConfig{}

	if got := cfg.GetListen(); got != DefaultListen {
		t.Errorf("GetListen() = %q", got)
	}
	if got := cfg.GetBackend(); got != BackendSQLite {
		t.Errorf("GetBackend() = %q", got)
	}
	if got := cfg.GetDBPath(); got != DefaultDBPath {
		t.Errorf("GetDBPath() = %q", got)
	}
	if got := cfg.GetRedisAddr(); got != DefaultRedisAddr {
		t.Errorf("GetRedisAddr() = %q", got)
	}
	if got := cfg.GetRedisDB(); got != 0 {
		t.Errorf("GetRedisDB() = %d", got)
	}
	if cfg.GetShuffle() {
		t.Error("GetShuffle() should default to false")
	}
	if got := cfg.GetWeatherPath(); got != "" {
		t.Errorf("GetWeatherPath() = %q", got)
	}
	if got := cfg.GetExportDir(); got != "." {
		t.Errorf("GetExportDir() = %q", got)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "review.json")
	testJSON := `{
  "backend": "redis",
  "redis_addr": "cache:6380",
  "redis_db": 2,
  "flush_interval": "10s",
  "shuffle": true,
  "window_days": 14
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetBackend() != BackendRedis {
		t.Errorf("GetBackend() = %q, want redis", cfg.GetBackend())
	}
	if cfg.GetRedisAddr() != "cache:6380" || cfg.GetRedisDB() != 2 {
		t.Errorf("unexpected redis settings %q/%d", cfg.GetRedisAddr(), cfg.GetRedisDB())
	}
	if cfg.GetFlushInterval() != 10*time.Second {
		t.Errorf("GetFlushInterval() = %v", cfg.GetFlushInterval())
	}
	if !cfg.GetShuffle() {
		t.Error("expected shuffle true")
	}
	if cfg.GetWindowDays() != 14 {
		t.Errorf("GetWindowDays() = %f", cfg.GetWindowDays())
	}
	// omitted fields keep defaults
	if cfg.GetDBPath() != DefaultDBPath {
		t.Errorf("GetDBPath() = %q", cfg.GetDBPath())
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "review.yml")
	testYAML := "backend: file\nslot_dir: /var/lib/trace-review\nslot_name: site-a\n"
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetBackend() != BackendFile {
		t.Errorf("GetBackend() = %q, want file", cfg.GetBackend())
	}
	if cfg.GetSlotDir() != "/var/lib/trace-review" {
		t.Errorf("GetSlotDir() = %q", cfg.GetSlotDir())
	}
	if cfg.GetSlotName() != "site-a" {
		t.Errorf("GetSlotName() = %q", cfg.GetSlotName())
	}
}

func TestLoadConfig_ShippedDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("failed to load shipped defaults: %v", err)
	}
	def := DefaultReviewConfig()
	if cfg.GetBackend() != def.GetBackend() || cfg.GetFlushInterval() != def.GetFlushInterval() ||
		cfg.GetSlotName() != def.GetSlotName() || cfg.GetListen() != def.GetListen() {
		t.Errorf("shipped defaults drifted from DefaultReviewConfig: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"extension", write("cfg.toml", ""), "extension"},
		{"missing", filepath.Join(dir, "absent.json"), "stat"},
		{"bad json", write("bad.json", "{"), "JSON"},
		{"bad yaml", write("bad.yaml", "backend: [unclosed"), "YAML"},
		{"bad backend", write("backend.json", `{"backend":"postgres"}`), "backend"},
		{"bad interval", write("interval.json", `{"flush_interval":"soon"}`), "flush_interval"},
		{"negative interval", write("neg.json", `{"flush_interval":"-5s"}`), "positive"},
		{"bad window", write("window.yaml", "window_days: 0\n"), "window_days"},
		{"blank slot", write("slot.json", `{"slot_name":"  "}`), "slot_name"},
		{"negative redis db", write("redis.json", `{"redis_db":-1}`), "redis_db"},
		{"too large", write("large.json", `{"listen":"`+strings.Repeat("x", maxFileSize)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetFlushInterval_InvalidFallsBack(t *testing.T) {
	cfg := &ReviewConfig{FlushInterval: ptrString("nonsense")}
	if got := cfg.GetFlushInterval(); got != DefaultFlushInterval {
		t.Errorf("GetFlushInterval() = %v, want default", got)
	}
}
