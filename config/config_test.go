package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icodeforyou/ews-go/ews"
	"github.com/spf13/viper"
)

const testConfig = `
ews:
  api_key: from-file
  timeout_seconds: 3
schedule:
  fetch_at: "*/15 * * * *"
mqtt:
  host: localhost
  port: 1883
  topic: home/energy/price
logging:
  console_level: debug
  file: /tmp/ews.log
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := load(viper.New(), writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	t.Run("Ews", func(t *testing.T) {
		if config.Ews.ApiKey != "from-file" {
			t.Errorf("Expected api key from-file, got %q", config.Ews.ApiKey)
		}
		if config.Ews.GetTimeout() != 3*time.Second {
			t.Errorf("Expected timeout 3s, got %v", config.Ews.GetTimeout())
		}
		if config.Ews.GetEndpoint() != ews.DataEndpoint {
			t.Errorf("Expected default endpoint, got %q", config.Ews.GetEndpoint())
		}
	})

	t.Run("Schedule", func(t *testing.T) {
		if config.Schedule.GetFetchAt() != "*/15 * * * *" {
			t.Errorf("Expected fetch_at from file, got %q", config.Schedule.GetFetchAt())
		}
		if config.Schedule.GetPublishAt() != "@hourly" {
			t.Errorf("Expected default publish_at, got %q", config.Schedule.GetPublishAt())
		}
	})

	t.Run("Mqtt", func(t *testing.T) {
		if !config.Mqtt.Enabled() {
			t.Errorf("Expected mqtt to be enabled")
		}
		if config.Mqtt.Port != 1883 {
			t.Errorf("Expected port 1883, got %d", config.Mqtt.Port)
		}
		if config.Mqtt.GetTopic() != "home/energy/price" {
			t.Errorf("Expected topic from file, got %q", config.Mqtt.GetTopic())
		}
		if config.Mqtt.GetClientId() != ews.ProjectName {
			t.Errorf("Expected default client id, got %q", config.Mqtt.GetClientId())
		}
	})

	t.Run("Logging", func(t *testing.T) {
		if config.Logging.GetConsoleLevel() != slog.LevelDebug {
			t.Errorf("Expected console level debug, got %v", config.Logging.GetConsoleLevel())
		}
		opts := config.Logging.FileOptions()
		if opts.Path != "/tmp/ews.log" || opts.MaxSizeMb != 5 || opts.MaxBackups != 2 || opts.Level != slog.LevelInfo {
			t.Errorf("Unexpected file options %+v", opts)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		if config.Api.Address != "" {
			t.Errorf("Expected status server to be disabled, got %q", config.Api.Address)
		}
		if config.Api.GetPushInterval() != 10*time.Second {
			t.Errorf("Expected default push interval, got %v", config.Api.GetPushInterval())
		}
		if config.Display.GetTimezone() != "Europe/Berlin" {
			t.Errorf("Expected default timezone, got %q", config.Display.GetTimezone())
		}
	})
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EWS_API_KEY", "from-env")

	config, err := load(viper.New(), writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if config.Ews.ApiKey != "from-env" {
		t.Errorf("Expected api key from-env, got %q", config.Ews.ApiKey)
	}
}

func TestLoadConfigEnvOnlyKeys(t *testing.T) {
	t.Setenv("EWS_API_KEY", "from-env")
	t.Setenv("EWS_ENDPOINT", "http://localhost:8080/prices")
	t.Setenv("MQTT_HOST", "broker.local")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("API_ADDRESS", ":9120")
	t.Setenv("DISPLAY_TIMEZONE", "UTC")

	config, err := load(viper.New(), writeConfig(t, "schedule:\n  publish_at: \"@every 30m\"\n"))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	if config.Ews.ApiKey != "from-env" {
		t.Errorf("Expected api key from-env, got %q", config.Ews.ApiKey)
	}
	if config.Ews.GetEndpoint() != "http://localhost:8080/prices" {
		t.Errorf("Expected endpoint from env, got %q", config.Ews.GetEndpoint())
	}
	if config.Mqtt.Host != "broker.local" || config.Mqtt.Port != 8883 {
		t.Errorf("Expected mqtt broker.local:8883 from env, got %s:%d", config.Mqtt.Host, config.Mqtt.Port)
	}
	if config.Api.Address != ":9120" {
		t.Errorf("Expected api address from env, got %q", config.Api.Address)
	}
	if config.Display.GetTimezone() != "UTC" {
		t.Errorf("Expected timezone from env, got %q", config.Display.GetTimezone())
	}

	// Unset keys keep their defaults
	if config.Ews.GetTimeout() != ews.DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", config.Ews.GetTimeout())
	}
	if config.Mqtt.GetTopic() != "ews/price" {
		t.Errorf("Expected default topic, got %q", config.Mqtt.GetTopic())
	}
	if config.Schedule.GetPublishAt() != "@every 30m" || config.Schedule.GetFetchAt() != "5 * * * *" {
		t.Errorf("Expected schedule from file and default, got %q and %q",
			config.Schedule.GetPublishAt(), config.Schedule.GetFetchAt())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("Expected error for a missing config file")
	}
}

func TestWatchConfig(t *testing.T) {
	path := writeConfig(t, testConfig)
	v := viper.New()
	if _, err := load(v, path); err != nil {
		t.Fatalf("load() error: %v", err)
	}

	// A rewrite can show up as several events, the first one on a truncated file
	changed := make(chan *AppConfig, 1)
	watch(v, func(c *AppConfig) {
		if c.Ews.ApiKey != "rotated" {
			return
		}
		select {
		case changed <- c:
		default:
		}
	})

	updated := "ews:\n  api_key: rotated\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	select {
	case c := <-changed:
		if c.Mqtt.Enabled() {
			t.Errorf("Expected mqtt section to be gone after reload")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("config change was not noticed")
	}
}
