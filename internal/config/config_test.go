// v1
// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Point the loader at a nonexistent properties file so host files never
// leak into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENDURO_PROPERTIES_PATH", filepath.Join(t.TempDir(), "absent.properties"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != ":8090" {
		t.Errorf("listen address = %q", cfg.ListenAddress)
	}
	if cfg.DataDir != "data" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.HTTPReadTimeout != 5*time.Second || cfg.HTTPWriteTimeout != 30*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout)
	}
	if cfg.SimulatorBatchSize != 15 {
		t.Errorf("batch size = %d", cfg.SimulatorBatchSize)
	}
	if cfg.StageRankIncludesPenalty {
		t.Error("penalty toggle on by default")
	}
	if cfg.BreakerMaxFailures != 5 || cfg.BreakerResetTimeout != 30*time.Second {
		t.Errorf("breaker = %d / %v", cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)
	}
	if cfg.FederationBaseURL != "" {
		t.Errorf("federation url = %q, want disabled", cfg.FederationBaseURL)
	}
	if cfg.LiveStreamEnabled() {
		t.Error("live stream enabled with no brokers")
	}
}

func TestLoadFromPropertiesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.properties")
	content := "# timing service\n" +
		"listen_address=:9100\n" +
		"data_dir=" + filepath.Join(dir, "db") + "\n" +
		"http_read_timeout_ms=2500\n" +
		"stage_rank_includes_penalty=true\n" +
		"simulator_batch_size=25\n" +
		"federation_base_url=https://federation.example/api\n" +
		"kafka_brokers=broker-1:9092, broker-2:9092\n" +
		"live_topic=enduro.live\n" +
		"unknown_future_key=ignored\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	t.Setenv("ENDURO_PROPERTIES_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != ":9100" {
		t.Errorf("listen address = %q", cfg.ListenAddress)
	}
	if cfg.HTTPReadTimeout != 2500*time.Millisecond {
		t.Errorf("read timeout = %v", cfg.HTTPReadTimeout)
	}
	if !cfg.StageRankIncludesPenalty {
		t.Error("penalty toggle not applied")
	}
	if cfg.SimulatorBatchSize != 25 {
		t.Errorf("batch size = %d", cfg.SimulatorBatchSize)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.LiveStreamEnabled() {
		t.Error("live stream should be enabled with brokers and topic set")
	}
	// Write timeout untouched by the file keeps its default.
	if cfg.HTTPWriteTimeout != 30*time.Second {
		t.Errorf("write timeout = %v", cfg.HTTPWriteTimeout)
	}
}

func TestEnvOverridesProperties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.properties")
	if err := os.WriteFile(path, []byte("listen_address=:9100\nsimulator_batch_size=25\n"), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	t.Setenv("ENDURO_PROPERTIES_PATH", path)
	t.Setenv("ENDURO_LISTEN_ADDRESS", ":7777")
	t.Setenv("ENDURO_SIMULATOR_BATCH_SIZE", "40")
	t.Setenv("ENDURO_STAGE_RANK_INCLUDES_PENALTY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != ":7777" {
		t.Errorf("env did not override file: %q", cfg.ListenAddress)
	}
	if cfg.SimulatorBatchSize != 40 {
		t.Errorf("batch size = %d", cfg.SimulatorBatchSize)
	}
	if !cfg.StageRankIncludesPenalty {
		t.Error("env boolean not applied")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	isolate(t)

	cases := map[string]string{
		"ENDURO_HTTP_READ_TIMEOUT_MS": "-5",
		"ENDURO_SIMULATOR_BATCH_SIZE": "zero",
		"ENDURO_DATA_DIR":             "   ",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q accepted, want error", key, val)
			}
		})
	}
}

func TestMalformedPropertiesLineFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.properties")
	if err := os.WriteFile(path, []byte("listen_address :9100\n"), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	t.Setenv("ENDURO_PROPERTIES_PATH", path)

	if _, err := Load(); err == nil {
		t.Error("malformed properties line accepted")
	}
}
