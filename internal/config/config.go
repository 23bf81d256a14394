// v2
// internal/config/config.go

// Package config resolves runtime settings by layering defaults, an
// optional .properties file, and environment variables, in that order.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures every runtime setting of the timing service.
type Config struct {
	// ListenAddress defines the TCP address used by the HTTP server.
	ListenAddress string
	// DataDir holds the embedded store and log files.
	DataDir string
	// LogFilePath is the path to the service log file.
	LogFilePath string
	// PropertiesPath records the file used to load property values.
	PropertiesPath string
	// HTTPReadTimeout bounds the time to read incoming requests.
	HTTPReadTimeout time.Duration
	// HTTPWriteTimeout bounds the time to write responses.
	HTTPWriteTimeout time.Duration
	// ShutdownTimeout limits graceful shutdown attempts.
	ShutdownTimeout time.Duration
	// StageRankIncludesPenalty selects whether this-stage-only ranking
	// counts penalty seconds. Cumulative totals always include them.
	StageRankIncludesPenalty bool
	// SimulatorBatchSize is the poll batch used when none is requested.
	SimulatorBatchSize int
	// FederationBaseURL is the upstream roster/time feed; empty disables
	// the import endpoint.
	FederationBaseURL string
	// BreakerMaxFailures and BreakerResetTimeout tune the breaker guarding
	// federation calls.
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	// KafkaBrokers and LiveTopic configure the optional live-timing
	// publisher; the stream stays off unless both are set.
	KafkaBrokers []string
	LiveTopic    string
}

const (
	defaultListenAddress = ":8090"
	defaultDataDir       = "data"
	defaultLogFile       = "logs/enduro-backend.log"
	defaultPropsPath     = "enduro-backend.properties"
	defaultReadTimeout   = 5 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultShutdown      = 5 * time.Second
	defaultBatchSize     = 15
	defaultBreakerFails  = 5
	defaultBreakerReset  = 30 * time.Second
)

// Load resolves configuration. The properties file location can be
// overridden with ENDURO_PROPERTIES_PATH; a missing file is not an error.
func Load() (Config, error) {
	cfg := Config{
		ListenAddress:       defaultListenAddress,
		DataDir:             defaultDataDir,
		LogFilePath:         filepath.Clean(defaultLogFile),
		HTTPReadTimeout:     defaultReadTimeout,
		HTTPWriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout:     defaultShutdown,
		SimulatorBatchSize:  defaultBatchSize,
		BreakerMaxFailures:  defaultBreakerFails,
		BreakerResetTimeout: defaultBreakerReset,
	}

	propsPath := strings.TrimSpace(os.Getenv("ENDURO_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LiveStreamEnabled reports whether the Kafka publisher should start.
func (c Config) LiveStreamEnabled() bool {
	return len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.LiveTopic) != ""
}

func applyProperties(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	switch key {
	case "listen_address":
		if value == "" {
			return errors.New("listen_address cannot be empty")
		}
		cfg.ListenAddress = value
	case "data_dir":
		if value == "" {
			return errors.New("data_dir cannot be empty")
		}
		cfg.DataDir = filepath.Clean(value)
	case "log_path":
		if value == "" {
			return errors.New("log_path cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(value)
	case "http_read_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPReadTimeout = d
	case "http_write_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPWriteTimeout = d
	case "shutdown_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	case "stage_rank_includes_penalty":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		cfg.StageRankIncludesPenalty = b
	case "simulator_batch_size":
		n, err := parsePositiveInt(value)
		if err != nil {
			return err
		}
		cfg.SimulatorBatchSize = n
	case "federation_base_url":
		cfg.FederationBaseURL = value
	case "breaker_max_failures":
		n, err := parsePositiveInt(value)
		if err != nil {
			return err
		}
		cfg.BreakerMaxFailures = n
	case "breaker_reset_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.BreakerResetTimeout = d
	case "kafka_brokers":
		cfg.KafkaBrokers = splitAndTrim(value)
	case "live_topic":
		cfg.LiveTopic = value
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := lookupEnvTrimmed(key); ok {
			*dst = v
		}
	}
	str("ENDURO_LISTEN_ADDRESS", &cfg.ListenAddress)
	str("ENDURO_FEDERATION_BASE_URL", &cfg.FederationBaseURL)
	str("ENDURO_LIVE_TOPIC", &cfg.LiveTopic)

	if v, ok := lookupEnvTrimmed("ENDURO_DATA_DIR"); ok {
		if v == "" {
			return errors.New("ENDURO_DATA_DIR cannot be empty")
		}
		cfg.DataDir = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("ENDURO_LOG_PATH"); ok {
		if v == "" {
			return errors.New("ENDURO_LOG_PATH cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("ENDURO_HTTP_READ_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("ENDURO_HTTP_READ_TIMEOUT_MS: %w", err)
		}
		cfg.HTTPReadTimeout = d
	}
	if v, ok := lookupEnvTrimmed("ENDURO_HTTP_WRITE_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("ENDURO_HTTP_WRITE_TIMEOUT_MS: %w", err)
		}
		cfg.HTTPWriteTimeout = d
	}
	if v, ok := lookupEnvTrimmed("ENDURO_SHUTDOWN_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("ENDURO_SHUTDOWN_TIMEOUT_MS: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v, ok := lookupEnvTrimmed("ENDURO_STAGE_RANK_INCLUDES_PENALTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENDURO_STAGE_RANK_INCLUDES_PENALTY: %w", err)
		}
		cfg.StageRankIncludesPenalty = b
	}
	if v, ok := lookupEnvTrimmed("ENDURO_SIMULATOR_BATCH_SIZE"); ok {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("ENDURO_SIMULATOR_BATCH_SIZE: %w", err)
		}
		cfg.SimulatorBatchSize = n
	}
	if v, ok := lookupEnvTrimmed("ENDURO_BREAKER_MAX_FAILURES"); ok {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("ENDURO_BREAKER_MAX_FAILURES: %w", err)
		}
		cfg.BreakerMaxFailures = n
	}
	if v, ok := lookupEnvTrimmed("ENDURO_BREAKER_RESET_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("ENDURO_BREAKER_RESET_TIMEOUT_MS: %w", err)
		}
		cfg.BreakerResetTimeout = d
	}
	if v, ok := lookupEnvTrimmed("ENDURO_KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(v)
	}
	return nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveMillis(v string) (time.Duration, error) {
	ms, err := parsePositiveInt(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parsePositiveInt(v string) (int, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return n, nil
}
