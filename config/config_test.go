package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
service_name: orderdup
connect_policy: best_effort
dispatch_timeout_ms: 2500
health_interval_sec: 10
gateways:
  - name: paper
    type: sim
    enabled: true
    latency_ms: 20
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServiceName != "orderdup" {
		t.Errorf("service_name = %q", cfg.ServiceName)
	}
	if got := cfg.DispatchTimeout(); got != 2500*time.Millisecond {
		t.Errorf("dispatch timeout = %s", got)
	}
	if got := cfg.HealthInterval(); got != 10*time.Second {
		t.Errorf("health interval = %s", got)
	}
	if got := cfg.Retention(); got != 7*24*time.Hour {
		t.Errorf("default retention = %s", got)
	}
	if got := len(cfg.EnabledGateways()); got != 1 {
		t.Errorf("enabled gateways = %d", got)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GATEWAY_NAME", "broker_env")
	cfg, err := Load(writeConfig(t, `
gateways:
  - name: ${TEST_GATEWAY_NAME}
    type: sim
    enabled: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateways[0].Name != "broker_env" {
		t.Errorf("env not expanded: %q", cfg.Gateways[0].Name)
	}
}

func TestLoadFallsBackToConfigFileEnv(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("CONFIG_FILE", path)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServiceName != "orderdup" {
		t.Errorf("service_name = %q", cfg.ServiceName)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no gateways", `service_name: x`},
		{"all disabled", `
gateways:
  - name: a
    type: sim
    enabled: false
`},
		{"duplicate names", `
gateways:
  - name: a
    type: sim
    enabled: true
  - name: a
    type: sim
    enabled: true
`},
		{"fix without config file", `
gateways:
  - name: a
    type: fix
    enabled: true
`},
		{"unknown type", `
gateways:
  - name: a
    type: rest
    enabled: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
