package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Gateway       struct {
		Port           int           `yaml:"port" mapstructure:"port"`
		RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	} `yaml:"gateway" mapstructure:"gateway"`
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	doc := `
name: dreamd
environment: production
logging:
  level: warn
  format: json
gateway:
  port: 9090
  request_timeout: 45s
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg testConfig
	if err := Load("dreamd", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "dreamd" || cfg.Environment != "production" {
		t.Errorf("base fields %+v", cfg.ServiceConfig)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("logging %+v", cfg.Logging)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("port %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.RequestTimeout != 45*time.Second {
		t.Errorf("request timeout %s", cfg.Gateway.RequestTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	doc := "name: dreamd\ngateway:\n  port: 8080\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GATEWAY_PORT", "9999")
	var cfg testConfig
	if err := Load("dreamd", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("env override ignored, port %d", cfg.Gateway.Port)
	}
}

func TestEnvFileLoads(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NAME=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NAME") })

	var cfg testConfig
	if err := Load("dreamd", &cfg, WithEnvFile(envPath)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "from-dotenv" {
		t.Errorf("name %q", cfg.Name)
	}
}

func TestServiceConfigDefaultsAndValidation(t *testing.T) {
	c := &ServiceConfig{Name: "dreamd"}
	c.ApplyDefaults()
	if c.Environment != "development" || !c.Debug {
		t.Errorf("defaults %+v", c)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("debug should raise log level, got %s", c.Logging.Level)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := &ServiceConfig{Name: "dreamd", Environment: "qa"}
	bad.Logging.ApplyDefaults()
	if err := bad.Validate(); err == nil {
		t.Error("bad environment accepted")
	}
	unnamed := &ServiceConfig{}
	if err := unnamed.Validate(); err == nil {
		t.Error("missing name accepted")
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("GATEWAY_REQUEST_TIMEOUT")
	want := map[string]bool{
		"gateway_request_timeout": true,
		"gateway.request.timeout": true,
		"gateway.request_timeout": true,
	}
	for _, v := range got {
		delete(want, v)
	}
	if len(want) > 0 {
		t.Errorf("missing variants %v in %v", want, got)
	}
}
