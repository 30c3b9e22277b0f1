package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.VIN.VincarioPrefix != "https://api.vindecoder.eu/3.2" || cfg.VIN.NHTSABase != "https://vpic.nhtsa.dot.gov" {
		t.Fatalf("unexpected upstream defaults %+v", cfg.VIN)
	}
	if cfg.Upstream.Timeout != 30*time.Second || cfg.Upstream.BreakerFailThreshold != 5 {
		t.Fatalf("unexpected upstream defaults %+v", cfg.Upstream)
	}
	if cfg.NATS.URL != "" {
		t.Fatal("NATS should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VIN_DECODER_PROVIDER", "vincario")
	t.Setenv("VINDECODER_EU_API_KEY", "key")
	t.Setenv("VINDECODER_EU_SECRET_KEY", "secret")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("NATS_URL", "nats://bus:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.VIN.Provider != "vincario" || cfg.VIN.VincarioKey != "key" || cfg.VIN.VincarioSecret != "secret" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Upstream.Timeout != 5*time.Second || cfg.RateLimit.RPS != 2.5 || cfg.NATS.URL != "nats://bus:4222" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tms.yaml")
	yml := `
port: "7000"
log_level: debug
vin:
  provider: nhtsa
  nhtsa_base: http://nhtsa.local
upstream:
  timeout: 12s
mapbox:
  access_token: pk.file
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAPBOX_ACCESS_TOKEN", "pk.env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "7000" || cfg.LogLevel != "debug" || cfg.VIN.Provider != "nhtsa" || cfg.VIN.NHTSABase != "http://nhtsa.local" {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.Upstream.Timeout != 12*time.Second {
		t.Fatalf("duration not parsed: %v", cfg.Upstream.Timeout)
	}
	if cfg.Mapbox.AccessToken != "pk.env" {
		t.Fatalf("env should win over file, got %q", cfg.Mapbox.AccessToken)
	}
	// untouched sections keep their defaults
	if cfg.VIN.VincarioPrefix != "https://api.vindecoder.eu/3.2" {
		t.Fatalf("default lost: %q", cfg.VIN.VincarioPrefix)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("port: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_BURST", "lots")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"UPSTREAM_TIMEOUT", "RATE_LIMIT_BURST"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid log level")
	}

	cfg = Defaults()
	cfg.Upstream.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid timeout")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Defaults()
	cfg.LogLevel = "warn"
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "vin", "1M8GDM9AXKP042788")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warn line, got %s", out)
	}
}
